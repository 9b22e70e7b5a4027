package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderrecon/pkg/redis"
)

const lastRunTTL = 30 * 24 * time.Hour

// ErrNoRun is returned when no summary was stored for a label.
var ErrNoRun = errors.New("no run recorded")

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	LastRunKey(label string) string
}

// LastRun is the stored view of a RunSummary.
type LastRun struct {
	RunID      uuid.UUID `json:"run_id"`
	Label      string    `json:"label"`
	Window     string    `json:"window"`
	Since      time.Time `json:"since"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Stores     int       `json:"stores"`
}

// RedisRunStore keeps the most recent run summary per label in redis.
type RedisRunStore struct {
	store kvStore
	ttl   time.Duration
}

func NewRedisRunStore(store kvStore) *RedisRunStore {
	return &RedisRunStore{store: store, ttl: lastRunTTL}
}

func (s *RedisRunStore) RecordRun(ctx context.Context, summary RunSummary) error {
	payload, err := json.Marshal(LastRun{
		RunID:      summary.RunID,
		Label:      summary.Label,
		Window:     summary.Window.String(),
		Since:      summary.Since,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Candidates: summary.Candidates,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Stores:     len(summary.Report.Stores),
	})
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	return s.store.Set(ctx, s.store.LastRunKey(summary.Label), payload, s.ttl)
}

func (s *RedisRunStore) LastRun(ctx context.Context, label string) (*LastRun, error) {
	raw, err := s.store.Get(ctx, s.store.LastRunKey(label))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoRun
		}
		return nil, err
	}
	var run LastRun
	if err := json.Unmarshal([]byte(raw), &run); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	return &run, nil
}
