package business

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const (
	// registryShardCount is the number of shards for the registry.
	// Must be a power of 2 for efficient modulo operation.
	registryShardCount = 32
)

// registryShard represents a single shard of the connection registry.
type registryShard struct {
	mu      sync.RWMutex
	entries map[string]*Connection
}

// Registry is the concurrency-safe directory mapping a user ID to its
// single currently-live connection.
//
// Sharding distributes entries across 32 independently locked shards so
// concurrent connection lifecycles rarely contend. Register is
// last-registered-wins; Remove deletes by value identity so a closing
// stale connection can never evict the newer connection registered for
// the same user.
type Registry struct {
	shards      [registryShardCount]*registryShard
	hashSeed    maphash.Seed
	currentSize atomic.Int32
}

// NewRegistry creates a sharded connection registry.
func NewRegistry() *Registry {
	r := &Registry{
		hashSeed: maphash.MakeSeed(),
	}
	for i := range registryShardCount {
		r.shards[i] = &registryShard{
			entries: make(map[string]*Connection),
		}
	}
	return r
}

// getShard returns the shard for a given user ID using maphash
// (zero-allocation).
func (r *Registry) getShard(userID string) *registryShard {
	h := maphash.String(r.hashSeed, userID)
	return r.shards[h&(registryShardCount-1)]
}

// Register unconditionally associates userID with conn, replacing any
// prior association for that ID. The superseded connection, if any, is
// not closed here; its own lifecycle removes it when its transport dies.
func (r *Registry) Register(userID string, conn *Connection) {
	if userID == "" || conn == nil {
		return
	}

	shard := r.getShard(userID)

	shard.mu.Lock()
	if _, exists := shard.entries[userID]; !exists {
		r.currentSize.Add(1)
	}
	shard.entries[userID] = conn
	shard.mu.Unlock()
}

// Lookup returns the currently registered connection for userID.
// Never blocks beyond the shard read lock.
func (r *Registry) Lookup(userID string) (*Connection, bool) {
	shard := r.getShard(userID)

	shard.mu.RLock()
	conn, exists := shard.entries[userID]
	shard.mu.RUnlock()
	return conn, exists
}

// Remove deletes the entry whose value is identical to conn, regardless
// of which user it is keyed under. A connection that was superseded by a
// re-registration finds someone else's entry under its user ID and leaves
// it alone. Idempotent; removing an unknown or never-registered
// connection is a no-op.
func (r *Registry) Remove(conn *Connection) {
	if conn == nil {
		return
	}

	userID := conn.UserID()
	if userID == "" {
		// Never completed registration, nothing to clean up.
		return
	}

	shard := r.getShard(userID)

	shard.mu.Lock()
	if current, exists := shard.entries[userID]; exists && current == conn {
		delete(shard.entries, userID)
		r.currentSize.Add(-1)
	}
	shard.mu.Unlock()
}

// Size returns the current number of registered connections.
// Lock-free atomic read.
func (r *Registry) Size() int32 {
	return r.currentSize.Load()
}

// ForEach iterates over all registered connections, calling fn for each.
// Per-shard snapshots keep fn from running under any shard lock.
func (r *Registry) ForEach(fn func(userID string, conn *Connection)) {
	type entry struct {
		userID string
		conn   *Connection
	}

	var all []entry
	for i := range registryShardCount {
		shard := r.shards[i]
		shard.mu.RLock()
		for userID, conn := range shard.entries {
			all = append(all, entry{userID: userID, conn: conn})
		}
		shard.mu.RUnlock()
	}

	for _, e := range all {
		fn(e.userID, e.conn)
	}
}
