package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langhaul/roadlog/internal/models"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &models.NetworkError{Op: "submit", Err: assert.AnError}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	wantErr := &models.NetworkError{Op: "submit", Err: assert.AnError}
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, 3, calls)
	var netErr *models.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestDoAuthErrorNotRetried(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return &models.AuthError{StatusCode: 401}
	})

	// 凭证错误重试无意义，一次失败即返回
	assert.Equal(t, 1, calls)
	var authErr *models.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 401, authErr.StatusCode)
}

func TestDoBackoffDoubles(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialBackoff: 10 * time.Millisecond}

	start := time.Now()
	_ = policy.Do(context.Background(), func(context.Context) error {
		return errors.New("transient")
	})
	elapsed := time.Since(start)

	// 两次退避：10ms + 20ms
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	policy := Policy{}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDefaultPolicy(t *testing.T) {
	policy := Default()

	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.InitialBackoff)
}
