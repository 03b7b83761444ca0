package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defensehub/defensehub/internal/domain/shared"
)

func testConnection(id string) *Connection {
	cfg := DefaultConnectionConfig(recordingDeliverer(make(chan string, 16)))
	cfg.Logger = quietLogger()
	return NewConnection(id, cfg)
}

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Logger: quietLogger()})
	conn := testConnection("c1")
	defer conn.Close()

	require.NoError(t, reg.Subscribe(conn, SessionGroup(7)))
	require.NoError(t, reg.Subscribe(conn, SessionGroup(7)))

	assert.Len(t, reg.MembersOf(SessionGroup(7)), 1)
	assert.Equal(t, int64(1), reg.Stats().Subscribes)
}

func TestRegistry_MembersOfUnknownGroup(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Logger: quietLogger()})
	assert.Nil(t, reg.MembersOf(SessionGroup(99)))
}

func TestRegistry_CapacityRejectsNewConnections(t *testing.T) {
	reg := NewRegistry(RegistryConfig{MaxConnections: 1, Logger: quietLogger()})
	first := testConnection("c1")
	second := testConnection("c2")
	defer first.Close()
	defer second.Close()

	require.NoError(t, reg.Subscribe(first, AllScores()))

	err := reg.Subscribe(second, AllScores())
	assert.ErrorIs(t, err, shared.ErrRegistryExhausted)

	// A known connection can still add memberships at capacity.
	require.NoError(t, reg.Subscribe(first, SessionGroup(7)))

	stats := reg.Stats()
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, int64(1), stats.Rejections)
}

func TestRegistry_UnsubscribingLastGroupFreesTheConnection(t *testing.T) {
	reg := NewRegistry(RegistryConfig{MaxConnections: 1, Logger: quietLogger()})
	first := testConnection("c1")
	second := testConnection("c2")
	defer first.Close()
	defer second.Close()

	require.NoError(t, reg.Subscribe(first, SessionGroup(7)))
	reg.Unsubscribe(first, SessionGroup(7))

	// With no memberships left the connection no longer occupies a slot.
	assert.Equal(t, 0, reg.ConnectionCount())
	assert.NoError(t, reg.Subscribe(second, SessionGroup(7)))
	assert.Equal(t, 1, reg.ConnectionCount())
}

func TestRegistry_UnsubscribeUnknownIsNoOp(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Logger: quietLogger()})
	conn := testConnection("c1")
	defer conn.Close()

	reg.Unsubscribe(conn, SessionGroup(7))
	assert.Equal(t, int64(0), reg.Stats().Unsubscribes)
}

func TestRegistry_OnDisconnectRemovesAllMemberships(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Logger: quietLogger()})
	conn := testConnection("c1")
	other := testConnection("c2")
	defer conn.Close()
	defer other.Close()

	require.NoError(t, reg.Subscribe(conn, AllScores()))
	require.NoError(t, reg.Subscribe(conn, SessionGroup(7)))
	require.NoError(t, reg.Subscribe(other, SessionGroup(7)))

	reg.OnDisconnect(conn)

	assert.Empty(t, reg.MembersOf(AllScores()))
	assert.Len(t, reg.MembersOf(SessionGroup(7)), 1)
	assert.Equal(t, 1, reg.ConnectionCount())

	// Disconnecting again is a no-op.
	reg.OnDisconnect(conn)
	assert.Equal(t, int64(2), reg.Stats().Unsubscribes)
}

func TestRegistry_MembersOfIsASnapshot(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Logger: quietLogger()})
	conn := testConnection("c1")
	defer conn.Close()

	require.NoError(t, reg.Subscribe(conn, SessionGroup(7)))
	members := reg.MembersOf(SessionGroup(7))

	reg.UnsubscribeAll(conn)

	// The snapshot taken before the unsubscribe is unaffected.
	require.Len(t, members, 1)
	assert.Equal(t, "c1", members[0].ID())
	assert.Empty(t, reg.MembersOf(SessionGroup(7)))
}
