package realtime

import (
	"sort"
	"sync"
)

// Registry is the in-memory presence map. It supports several concurrent
// connections per user: a forward map keyed by connection id plus a reverse
// index per user. Removal is keyed by connection id, so a user's second
// connection never evicts the first. Process-local only; it mirrors
// currently-open connections and is rebuilt empty on restart.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]string
	byUser map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register adds a (user, connection) pair. Registering the same connection
// twice is a no-op.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[connID]; ok {
		return
	}

	r.byConn[connID] = userID
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][connID] = struct{}{}
}

// Unregister removes the entry for connID. It reports the user the
// connection belonged to and whether that user is now fully offline.
// Unknown connection ids are a silent no-op.
func (r *Registry) Unregister(connID string) (userID string, offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}

	delete(r.byConn, connID)
	delete(r.byUser[userID], connID)
	if len(r.byUser[userID]) == 0 {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

// Connections returns every active connection id for userID; empty means
// the user is offline.
func (r *Registry) Connections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(r.byUser[userID]))
	for connID := range r.byUser[userID] {
		conns = append(conns, connID)
	}
	return conns
}

// Online reports whether userID has at least one active connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineUsers returns the deduplicated, sorted list of online user ids.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}
