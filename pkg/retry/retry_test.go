package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedAlwaysEmptyMakesFourAttempts(t *testing.T) {
	calls := 0
	value, attempts, err := Bounded(context.Background(), ConfirmPolicy(), func(context.Context, int) (string, error) {
		calls++
		return "", nil
	})

	require.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, value)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, attempts)
}

func TestBoundedSucceedsOnLaterAttempt(t *testing.T) {
	value, attempts, err := Bounded(context.Background(), ConfirmPolicy(), func(_ context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", nil
		}
		return "R123", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "R123", value)
	assert.Equal(t, 3, attempts)
}

func TestBoundedRetriesErrors(t *testing.T) {
	boom := errors.New("provider unavailable")
	_, attempts, err := Bounded(context.Background(), ConfirmPolicy(), func(context.Context, int) (string, error) {
		return "", boom
	})

	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, attempts)
}

func TestBoundedFirstAttemptWins(t *testing.T) {
	value, attempts, err := Bounded(context.Background(), Policy{}, func(context.Context, int) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, 1, attempts)
}

func TestBoundedStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Bounded(ctx, ConfirmPolicy(), func(context.Context, int) (string, error) {
		return "", nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
