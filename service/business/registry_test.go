package business

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRegisteredConnection(userID string) *Connection {
	conn := NewConnection(newFakeTransport(), 8)
	conn.bindUser(userID)
	return conn
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()

	conn := makeRegisteredConnection("user1")
	registry.Register("user1", conn)

	got, ok := registry.Lookup("user1")
	require.True(t, ok)
	assert.Same(t, conn, got)
	assert.Equal(t, int32(1), registry.Size())
}

func TestRegistry_LookupAbsent(t *testing.T) {
	registry := NewRegistry()

	got, ok := registry.Lookup("nobody")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRegistry_LastRegisteredWins(t *testing.T) {
	registry := NewRegistry()

	connA := makeRegisteredConnection("user1")
	connB := makeRegisteredConnection("user1")

	registry.Register("user1", connA)
	registry.Register("user1", connB)

	got, ok := registry.Lookup("user1")
	require.True(t, ok)
	assert.Same(t, connB, got)
	// Re-registration replaces, it does not accumulate.
	assert.Equal(t, int32(1), registry.Size())
}

func TestRegistry_StaleRemovalCannotEvictNewer(t *testing.T) {
	registry := NewRegistry()

	connA := makeRegisteredConnection("user1")
	connB := makeRegisteredConnection("user1")

	registry.Register("user1", connA)
	registry.Register("user1", connB)

	// A closes after being superseded; its removal must not touch B's entry.
	registry.Remove(connA)

	got, ok := registry.Lookup("user1")
	require.True(t, ok)
	assert.Same(t, connB, got)
	assert.Equal(t, int32(1), registry.Size())
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	registry := NewRegistry()

	conn := makeRegisteredConnection("user1")
	other := makeRegisteredConnection("user2")
	registry.Register("user1", conn)
	registry.Register("user2", other)

	registry.Remove(conn)
	registry.Remove(conn)

	// A never-registered connection is a harmless no-op too.
	registry.Remove(makeRegisteredConnection("user3"))

	_, ok := registry.Lookup("user1")
	assert.False(t, ok)

	got, ok := registry.Lookup("user2")
	require.True(t, ok)
	assert.Same(t, other, got)
	assert.Equal(t, int32(1), registry.Size())
}

func TestRegistry_RemoveUnregisteredConnection(t *testing.T) {
	registry := NewRegistry()

	// A connection that never completed the register handshake has no
	// user ID; removing it must not panic or affect anything.
	conn := NewConnection(newFakeTransport(), 8)
	registry.Remove(conn)
	assert.Equal(t, int32(0), registry.Size())
}

func TestRegistry_ForEach(t *testing.T) {
	registry := NewRegistry()

	for i := range 5 {
		userID := fmt.Sprintf("user%d", i)
		registry.Register(userID, makeRegisteredConnection(userID))
	}

	seen := make(map[string]bool)
	registry.ForEach(func(userID string, conn *Connection) {
		seen[userID] = conn != nil
	})

	assert.Len(t, seen, 5)
	for i := range 5 {
		assert.True(t, seen[fmt.Sprintf("user%d", i)])
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	const workers = 16
	const iterations = 200

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			userID := fmt.Sprintf("user%d", worker)
			for range iterations {
				conn := makeRegisteredConnection(userID)
				registry.Register(userID, conn)
				_, _ = registry.Lookup(userID)
				registry.Remove(conn)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int32(0), registry.Size())
}

func TestRegistry_SingleOwnerInvariant(t *testing.T) {
	registry := NewRegistry()

	connA := makeRegisteredConnection("userA")
	connB := makeRegisteredConnection("userB")
	registry.Register("userA", connA)
	registry.Register("userB", connB)

	gotA, okA := registry.Lookup("userA")
	gotB, okB := registry.Lookup("userB")
	require.True(t, okA)
	require.True(t, okB)
	assert.Same(t, connA, gotA)
	assert.Same(t, connB, gotB)
	assert.NotSame(t, gotA, gotB)
}
