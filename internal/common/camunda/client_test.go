package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fds-analytics/internal/common/logger"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg      string
		expected bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"broken pipe", true},
		{"permission denied", false},
		{"process not found", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableZeebeError(errors.New(tt.msg)))
		})
	}
}

func TestExecuteWithRetry(t *testing.T) {
	rc := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	log := logger.NewTestLogger(t)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := ExecuteWithRetry(context.Background(), rc, log, "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("unavailable")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		err := ExecuteWithRetry(context.Background(), rc, log, "op", func(context.Context) error {
			calls++
			return errors.New("permission denied")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after budget", func(t *testing.T) {
		calls := 0
		err := ExecuteWithRetry(context.Background(), rc, log, "op", func(context.Context) error {
			calls++
			return errors.New("timeout")
		})
		assert.ErrorContains(t, err, "timeout")
		assert.Equal(t, 4, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := &RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
		err := ExecuteWithRetry(ctx, slow, log, "op", func(context.Context) error {
			return errors.New("unavailable")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
