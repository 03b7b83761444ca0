package realtime

import (
	"log/slog"
	"sync"

	"github.com/defensehub/defensehub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIPTION REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// RegistryConfig configures the subscription registry.
type RegistryConfig struct {
	// MaxConnections bounds the number of distinct connections holding at
	// least one subscription. New subscriptions beyond the limit are
	// rejected; existing ones are never evicted. Zero means unlimited.
	MaxConnections int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxConnections: 10000,
	}
}

// Registry tracks which connections belong to which broadcast groups. It is
// the exclusive owner of membership: the broadcaster only reads snapshots.
// Membership is in-memory only and does not survive a restart.
//
// All operations are safe for concurrent use; reads taken during a broadcast
// never observe a partially updated group.
type Registry struct {
	mu sync.RWMutex

	// groups maps a group descriptor to its member connections.
	groups map[string]map[string]*Connection

	// memberships maps a connection id to the descriptors it belongs to.
	memberships map[string]map[string]struct{}

	cfg    RegistryConfig
	logger *slog.Logger

	subscribes   int64
	unsubscribes int64
	rejections   int64
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		groups:      make(map[string]map[string]*Connection),
		memberships: make(map[string]map[string]struct{}),
		cfg:         cfg,
		logger:      cfg.Logger,
	}
}

// Subscribe adds the connection to the group. Subscribing twice to the same
// group has the same effect as once. Returns shared.ErrRegistryExhausted
// when the connection is new and the registry is at capacity.
func (r *Registry) Subscribe(conn *Connection, group Group) error {
	desc := group.Descriptor()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.memberships[conn.ID()]; !known {
		if r.cfg.MaxConnections > 0 && len(r.memberships) >= r.cfg.MaxConnections {
			r.rejections++
			r.logger.Warn("registry at capacity, rejecting subscription",
				"connection_id", conn.ID(),
				"group", desc,
			)
			return shared.ErrRegistryExhausted
		}
		r.memberships[conn.ID()] = make(map[string]struct{})
	}

	members, ok := r.groups[desc]
	if !ok {
		members = make(map[string]*Connection)
		r.groups[desc] = members
	}

	if _, dup := members[conn.ID()]; dup {
		return nil
	}

	members[conn.ID()] = conn
	r.memberships[conn.ID()][desc] = struct{}{}
	r.subscribes++

	r.logger.Debug("subscribed", "connection_id", conn.ID(), "group", desc)
	return nil
}

// Unsubscribe removes the connection from the group. Removing a membership
// that does not exist is a no-op, not an error.
func (r *Registry) Unsubscribe(conn *Connection, group Group) {
	desc := group.Descriptor()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(conn.ID(), desc)
}

// UnsubscribeAll removes the connection from every group it belongs to.
func (r *Registry) UnsubscribeAll(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for desc := range r.memberships[conn.ID()] {
		r.removeLocked(conn.ID(), desc)
	}
	delete(r.memberships, conn.ID())
}

// OnDisconnect removes all memberships of a dead connection. Idempotent:
// calling it again for the same connection is a no-op.
func (r *Registry) OnDisconnect(conn *Connection) {
	r.UnsubscribeAll(conn)
	r.logger.Debug("disconnected", "connection_id", conn.ID())
}

// MembersOf returns a point-in-time snapshot of the group's members.
// Concurrent subscribe/unsubscribe calls never corrupt the returned slice.
func (r *Registry) MembersOf(group Group) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.groups[group.Descriptor()]
	if len(members) == 0 {
		return nil
	}

	snapshot := make([]*Connection, 0, len(members))
	for _, conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// ConnectionCount returns the number of connections with at least one
// subscription.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memberships)
}

// Stats returns a snapshot of registry counters.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RegistryStats{
		Connections:  len(r.memberships),
		Groups:       len(r.groups),
		Subscribes:   r.subscribes,
		Unsubscribes: r.unsubscribes,
		Rejections:   r.rejections,
	}
}

// RegistryStats is a point-in-time snapshot of registry counters.
type RegistryStats struct {
	Connections  int
	Groups       int
	Subscribes   int64
	Unsubscribes int64
	Rejections   int64
}

// removeLocked drops one membership. Caller holds the write lock.
func (r *Registry) removeLocked(connID, desc string) {
	members, ok := r.groups[desc]
	if !ok {
		return
	}
	if _, in := members[connID]; !in {
		return
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.groups, desc)
	}
	if m, ok := r.memberships[connID]; ok {
		delete(m, desc)
		// A connection with no memberships left stops counting toward
		// the connection limit.
		if len(m) == 0 {
			delete(r.memberships, connID)
		}
	}
	r.unsubscribes++
}
