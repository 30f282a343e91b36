package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/tally/internal/errors"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestValue_Success(t *testing.T) {
	calls := 0
	got, err := Value(context.Background(), DefaultConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestValue_NonRetryableError(t *testing.T) {
	calls := 0
	_, err := Value(context.Background(), DefaultConfig(), func(ctx context.Context) (string, error) {
		calls++
		return "", perrors.ErrMalformedExtraction
	})
	assert.ErrorIs(t, err, perrors.ErrMalformedExtraction)
	assert.Equal(t, 1, calls)
}

func TestValue_RetryableThenSuccess(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	got, err := Value(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", perrors.NewAPIError("anthropic", 529, "overloaded")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestValue_AllAttemptsFail(t *testing.T) {
	calls := 0
	_, err := Value(context.Background(), fastConfig(2), func(ctx context.Context) (int, error) {
		calls++
		return 0, perrors.ErrTimeout
	})
	assert.ErrorIs(t, err, perrors.ErrTimeout)
	assert.Equal(t, 2, calls)
}

func TestValue_ContextCancelledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	_, err := Value(ctx, cfg, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, perrors.ErrUnavailable
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestValue_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Value(context.Background(), Config{}, func(ctx context.Context) (bool, error) {
		calls++
		return false, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
