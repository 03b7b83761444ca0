package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/defensehub/defensehub/internal/domain/defense"
	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT FAN-OUT BROADCASTER
// ══════════════════════════════════════════════════════════════════════════════

// BroadcasterConfig configures the broadcaster.
type BroadcasterConfig struct {
	// Registry supplies membership snapshots at dispatch time.
	Registry *Registry

	// Logger for structured logging.
	Logger *slog.Logger
}

// Broadcaster fans a committed score event out to its recipient groups:
// all_scores, the event's session, student and evaluator groups. Each
// delivery is an independent non-blocking enqueue on the member's send
// queue, so a slow or dead connection in one group never delays or drops
// delivery to another. Fan-out is per-group: a connection subscribed to two
// matching groups receives the event twice, matching existing client
// expectations.
//
// Delivery failures are logged and isolated; they never propagate back to
// the mutation that produced the event.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	metrics BroadcasterStats
}

// NewBroadcaster creates a broadcaster reading memberships from the registry.
func NewBroadcaster(cfg BroadcasterConfig) *Broadcaster {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Broadcaster{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// Broadcast dispatches one committed score event. The caller guarantees the
// mutation is durable; Broadcast itself never fails the mutation path.
func (b *Broadcaster) Broadcast(event defense.ScoreEvent) {
	payload, err := json.Marshal(event.View)
	if err != nil {
		// A score projection always marshals; reaching this is a bug.
		b.logger.Error("failed to marshal score projection",
			"score_id", event.ScoreID,
			"error", err,
		)
		return
	}

	name := event.Kind.WireName()
	var delivered, failed int64

	for _, group := range GroupsFor(event) {
		members := b.registry.MembersOf(group)
		for _, conn := range members {
			if err := conn.Enqueue(name, payload); err != nil {
				failed++
				b.logger.Warn("enqueue failed",
					"event", name,
					"group", group.Descriptor(),
					"connection_id", conn.ID(),
					"error", err,
				)
				continue
			}
			delivered++
		}
	}

	b.mu.Lock()
	b.metrics.Events++
	b.metrics.Deliveries += delivered
	b.metrics.Failures += failed
	b.mu.Unlock()

	b.logger.Debug("event fanned out",
		"event", name,
		"score_id", event.ScoreID,
		"deliveries", delivered,
		"failures", failed,
	)
}

// Publish implements shared.EventPublisher for the consistency coordinator.
// Non-score events are ignored; only score mutations reach the wire.
func (b *Broadcaster) Publish(event shared.Event) error {
	se, ok := event.(defense.ScoreEvent)
	if !ok {
		return fmt.Errorf("realtime: unsupported event type %T", event)
	}
	b.Broadcast(se)
	return nil
}

// Stats returns a snapshot of broadcast counters.
func (b *Broadcaster) Stats() BroadcasterStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// BroadcasterStats is a point-in-time snapshot of broadcast counters.
type BroadcasterStats struct {
	// Events is the number of score events fanned out.
	Events int64

	// Deliveries is the number of successful per-connection enqueues.
	Deliveries int64

	// Failures is the number of enqueues that failed.
	Failures int64
}
