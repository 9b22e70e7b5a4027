package outbox

import (
	"encoding/json"
	"time"
)

// SourceRef identifies which process produced the event.
type SourceRef struct {
	Component string `json:"component"`
	RunLabel  string `json:"runLabel,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     *SourceRef      `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}
