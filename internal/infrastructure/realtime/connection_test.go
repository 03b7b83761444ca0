package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/domain/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingDeliverer captures delivered event names in order.
func recordingDeliverer(out chan<- string) Deliverer {
	return DelivererFunc(func(_ context.Context, _ string, eventName string, _ []byte) error {
		out <- eventName
		return nil
	})
}

func TestConnection_DeliversInOrder(t *testing.T) {
	delivered := make(chan string, 8)
	cfg := DefaultConnectionConfig(recordingDeliverer(delivered))
	cfg.Logger = quietLogger()

	conn := NewConnection("c1", cfg)
	defer conn.Close()

	require.NoError(t, conn.Enqueue("ScoreCreated", []byte(`{"n":1}`)))
	require.NoError(t, conn.Enqueue("ScoreUpdated", []byte(`{"n":2}`)))
	require.NoError(t, conn.Enqueue("ScoreDeleted", []byte(`{"n":3}`)))

	for _, want := range []string{"ScoreCreated", "ScoreUpdated", "ScoreDeleted"} {
		select {
		case got := <-delivered:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	stats := conn.Stats()
	assert.Equal(t, int64(3), stats.Enqueued)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestConnection_OverflowDropsOldest(t *testing.T) {
	gate := make(chan struct{})
	delivered := make(chan string, 8)
	d := DelivererFunc(func(_ context.Context, _ string, eventName string, _ []byte) error {
		<-gate
		delivered <- eventName
		return nil
	})

	cfg := DefaultConnectionConfig(d)
	cfg.QueueSize = 2
	cfg.SendTimeout = time.Minute
	cfg.Logger = quietLogger()

	conn := NewConnection("c1", cfg)
	defer conn.Close()

	// The pump takes e1 and blocks on the gate; e2 and e3 fill the queue.
	require.NoError(t, conn.Enqueue("e1", nil))
	require.Eventually(t, func() bool { return conn.Stats().Pending == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, conn.Enqueue("e2", nil))
	require.NoError(t, conn.Enqueue("e3", nil))

	// Overflow: the oldest queued event (e2) makes room for e4.
	require.NoError(t, conn.Enqueue("e4", nil))
	assert.Equal(t, int64(1), conn.Stats().Dropped)

	close(gate)

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case name := <-delivered:
			got = append(got, name)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining queue")
		}
	}
	assert.Equal(t, []string{"e1", "e3", "e4"}, got)
}

func TestConnection_EnqueueAfterClose(t *testing.T) {
	cfg := DefaultConnectionConfig(recordingDeliverer(make(chan string, 1)))
	cfg.Logger = quietLogger()

	conn := NewConnection("c1", cfg)
	conn.Close()
	conn.Wait()

	err := conn.Enqueue("ScoreCreated", nil)
	assert.ErrorIs(t, err, shared.ErrConnectionClosed)
}

func TestConnection_DeliveryFailureClosesConnection(t *testing.T) {
	d := DelivererFunc(func(_ context.Context, _ string, _ string, _ []byte) error {
		return errors.New("transport down")
	})

	cfg := DefaultConnectionConfig(d)
	cfg.MaxSendAttempts = 1
	cfg.Logger = quietLogger()

	var closes atomic.Int64
	cfg.OnClose = func(*Connection) { closes.Add(1) }

	conn := NewConnection("c1", cfg)
	require.NoError(t, conn.Enqueue("ScoreCreated", nil))

	conn.Wait()
	require.Eventually(t, func() bool { return closes.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, conn.Enqueue("ScoreUpdated", nil), shared.ErrConnectionClosed)
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	cfg := DefaultConnectionConfig(recordingDeliverer(make(chan string, 1)))
	cfg.Logger = quietLogger()

	var closes atomic.Int64
	cfg.OnClose = func(*Connection) { closes.Add(1) }

	conn := NewConnection("c1", cfg)
	conn.Close()
	conn.Close()
	conn.Wait()

	require.Eventually(t, func() bool { return closes.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), closes.Load())
}
