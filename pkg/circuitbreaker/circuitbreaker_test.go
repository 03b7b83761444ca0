package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := New("test")

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.IsClosed())

	counts := cb.Counts()
	assert.Equal(t, 10, counts.Requests)
	assert.Equal(t, 10, counts.TotalSuccesses)
	assert.Equal(t, 0, counts.TotalFailures)
}

func TestCircuitBreaker_OpensAfterFailureThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.IsOpen())

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// The blocked request never ran, so counts are unchanged.
	assert.Equal(t, 3, cb.Counts().Requests)
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().ConsecutiveFailures)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	var transitions []string
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(time.Millisecond),
		WithMaxHalfOpenRequests(2),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	// Two probe successes close the circuit again.
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(time.Millisecond),
	)

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	time.Sleep(5 * time.Millisecond)

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(5),
		WithTimeout(time.Millisecond),
		WithMaxHalfOpenRequests(1),
	)

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	time.Sleep(5 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// The single probe slot is taken, further requests are shed.
	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
}

func TestCircuitBreaker_IsFailurePredicate(t *testing.T) {
	benign := errors.New("cache miss")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, benign) }),
	)

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return benign }), benign)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	require.True(t, cb.IsOpen())

	var fallbackErr error
	err := cb.ExecuteWithFallback(context.Background(),
		func(context.Context) error { return nil },
		func(cause error) error {
			fallbackErr = cause
			return nil
		},
	)
	require.NoError(t, err)
	assert.ErrorIs(t, fallbackErr, ErrCircuitOpen)

	// Regular failures pass through without invoking the fallback.
	fallbackErr = nil
	cb.Reset()
	err = cb.ExecuteWithFallback(context.Background(),
		func(context.Context) error { return errBoom },
		func(cause error) error { return nil },
	)
	assert.ErrorIs(t, err, errBoom)
	assert.NoError(t, fallbackErr)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))

	require.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errBoom }), errBoom)
	require.True(t, cb.IsOpen())

	cb.Reset()

	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
	assert.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestPresetBreakers(t *testing.T) {
	cache := CacheBreaker(nil)
	assert.Equal(t, "cache", cache.Name())
	assert.True(t, cache.IsClosed())

	db := DatabaseBreaker(nil)
	assert.Equal(t, "database", db.Name())
	assert.True(t, db.IsClosed())
}
