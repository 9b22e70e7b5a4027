package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const tokenKey = "Token"

var errTokenMissing = errors.New("session payload has no token")

// ExtractToken reads the provider checkout token from the stored session payload.
// The canonical key is "Token"; other casings are accepted.
func ExtractToken(payload string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return "", fmt.Errorf("decode session payload: %w", err)
	}

	raw, ok := fields[tokenKey]
	if !ok {
		for key, value := range fields {
			if strings.EqualFold(key, tokenKey) {
				raw, ok = value, true
				break
			}
		}
	}
	if !ok {
		return "", errTokenMissing
	}

	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errTokenMissing
	}
	return token, nil
}
