package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/defensehub/defensehub/internal/domain/shared"
	"github.com/defensehub/defensehub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Deliverer is the outbound transport collaborator. The core calls Deliver
// once per (event, connection) pair; the transport owns wire encoding and
// socket I/O. Any push transport (WebSocket, SSE, long-poll) can implement it.
type Deliverer interface {
	Deliver(ctx context.Context, connectionID string, eventName string, payload []byte) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, connectionID string, eventName string, payload []byte) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, connectionID string, eventName string, payload []byte) error {
	return f(ctx, connectionID, eventName, payload)
}

// envelope is one queued delivery.
type envelope struct {
	eventName string
	payload   []byte
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// ConnectionConfig configures one subscriber connection.
type ConnectionConfig struct {
	// QueueSize bounds the send queue. On overflow the oldest queued event
	// is dropped; if the queue is still full the connection is closed.
	QueueSize int

	// SendTimeout bounds one Deliver call.
	SendTimeout time.Duration

	// MaxSendAttempts bounds delivery retries for one event. A failure after
	// the last attempt closes the connection; it never blocks other
	// connections and never reaches the mutation caller.
	MaxSendAttempts int

	// Deliverer is the transport collaborator.
	Deliverer Deliverer

	// OnClose is invoked exactly once when the connection dies, after the
	// write pump stops. The registry hooks disconnect cleanup here.
	OnClose func(*Connection)

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultConnectionConfig returns sensible defaults.
func DefaultConnectionConfig(d Deliverer) ConnectionConfig {
	return ConnectionConfig{
		QueueSize:       64,
		SendTimeout:     5 * time.Second,
		MaxSendAttempts: 2,
		Deliverer:       d,
	}
}

// Connection represents one live subscriber channel. It owns its send queue
// and a single write pump goroutine, so events enqueued for this connection
// go out in commit order. It exists from handshake to disconnect.
type Connection struct {
	id  string
	cfg ConnectionConfig

	queue  chan envelope
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup

	enqueued atomic.Int64
	dropped  atomic.Int64

	logger *slog.Logger
}

// NewConnection creates a connection and starts its write pump.
func NewConnection(id string, cfg ConnectionConfig) *Connection {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if cfg.MaxSendAttempts <= 0 {
		cfg.MaxSendAttempts = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Connection{
		id:     id,
		cfg:    cfg,
		queue:  make(chan envelope, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: cfg.Logger.With("connection_id", id),
	}

	c.wg.Add(1)
	go c.writePump()

	return c
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Enqueue places one event on the send queue without blocking. On overflow
// the oldest queued event is dropped first; if the queue is still full the
// connection is closed and shared.ErrDeliveryFailure is returned.
func (c *Connection) Enqueue(eventName string, payload []byte) error {
	select {
	case <-c.done:
		return shared.ErrConnectionClosed
	default:
	}

	env := envelope{eventName: eventName, payload: payload}

	select {
	case c.queue <- env:
		c.enqueued.Add(1)
		return nil
	default:
	}

	// Queue full: drop the oldest event to make room.
	select {
	case <-c.queue:
		c.dropped.Add(1)
		c.logger.Warn("send queue full, dropped oldest event", "event", eventName)
	default:
	}

	select {
	case c.queue <- env:
		c.enqueued.Add(1)
		return nil
	default:
		// Still full: the pump is wedged, cut the connection loose.
		c.logger.Error("send queue wedged, closing connection")
		c.Close()
		return shared.ErrDeliveryFailure
	}
}

// writePump drains the queue and hands events to the transport. A delivery
// failure after bounded retries closes the connection.
func (c *Connection) writePump() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.queue:
			if err := c.send(env); err != nil {
				c.logger.Error("delivery failed, scheduling disconnect",
					"event", env.eventName,
					"error", err,
				)
				c.Close()
				return
			}
		}
	}
}

// send performs one delivery with bounded retry.
func (c *Connection) send(env envelope) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SendTimeout)
	defer cancel()

	return retry.Do(ctx, func(ctx context.Context) error {
		return c.cfg.Deliverer.Deliver(ctx, c.id, env.eventName, env.payload)
	},
		retry.WithMaxAttempts(c.cfg.MaxSendAttempts),
		retry.WithInitialDelay(50*time.Millisecond),
		retry.WithRetryIf(func(error) bool { return true }),
	)
}

// Close terminates the connection. Further Enqueue calls fail with
// shared.ErrConnectionClosed; events queued for other connections are not
// affected. Safe to call more than once.
func (c *Connection) Close() {
	c.closed.Do(func() {
		close(c.done)
		if c.cfg.OnClose != nil {
			// Run cleanup off the pump goroutine: Close is reachable from
			// inside writePump and OnClose may take registry locks.
			go c.cfg.OnClose(c)
		}
	})
}

// Wait blocks until the write pump has stopped. Used by tests and shutdown.
func (c *Connection) Wait() {
	c.wg.Wait()
}

// Stats returns queue counters for this connection.
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		Enqueued: c.enqueued.Load(),
		Dropped:  c.dropped.Load(),
		Pending:  len(c.queue),
	}
}

// ConnectionStats is a point-in-time snapshot of one connection's queue.
type ConnectionStats struct {
	Enqueued int64
	Dropped  int64
	Pending  int
}
