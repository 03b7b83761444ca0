package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts(extra ...Option) []Option {
	opts := []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
		WithJitter(0),
	}
	return append(opts, extra...)
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, fastOpts()...)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentErrorStopsRetries(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(boom)
	}, fastOpts(WithRetryIf(func(error) bool { return true }))...)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustionReturnsUnderlyingError(t *testing.T) {
	boom := errors.New("still failing")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(boom)
	}, fastOpts()...)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_RetryIfOverridesDefault(t *testing.T) {
	boom := errors.New("plain error")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, fastOpts(WithRetryIf(func(error) bool { return true }))...)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("transient")

	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return Retryable(boom)
	}, fastOpts()...)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	_ = Do(context.Background(), func(context.Context) error {
		return Retryable(errors.New("transient"))
	}, fastOpts(WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		attempts = append(attempts, attempt)
	}))...)

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	out, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", Retryable(errors.New("transient"))
		}
		return "ready", nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, "ready", out)
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(25*time.Millisecond),
		WithMultiplier(10),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(5))
}

func TestRetryableAndPermanentWrappers(t *testing.T) {
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))

	boom := errors.New("boom")
	assert.True(t, IsRetryable(Retryable(boom)))
	assert.False(t, IsRetryable(boom))
	assert.True(t, IsPermanent(Permanent(boom)))
	assert.False(t, IsPermanent(Retryable(boom)))
	assert.ErrorIs(t, Retryable(boom), boom)
}
