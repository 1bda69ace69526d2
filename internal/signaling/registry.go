package signaling

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks every live client connection: its identity and the
// time it was last heard from. Room membership lives in Rooms; the two
// are only mutated together on the hub goroutine.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	seen    map[string]time.Time
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		seen:    make(map[string]time.Time),
	}
}

// Register allocates a fresh id for the client, stores the record and
// returns the id. Ids are short UUID fragments checked against live ids
// under the lock, so they can never collide with a registered client.
func (r *Registry) Register(c *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for {
		id = "user-" + uuid.NewString()[:8]
		if _, taken := r.clients[id]; !taken {
			break
		}
	}

	c.ID = id
	r.clients[id] = c
	r.seen[id] = time.Now()
	return id
}

// Touch records that the client was just heard from. No-op for unknown ids.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; ok {
		r.seen[id] = time.Now()
	}
}

// Get looks up a live client by id.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Remove deletes the record and reports whether it was still present.
// The caller is responsible for leaving the room and closing the send
// channel; the return value guarantees only one caller does so.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	delete(r.seen, id)
	return true
}

// Stale returns a snapshot of the ids that have been silent for longer
// than timeout. Snapshotting lets the caller tear the clients down
// without iterating the live map.
func (r *Registry) Stale(timeout time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var ids []string
	for id, seen := range r.seen {
		if now.Sub(seen) > timeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
