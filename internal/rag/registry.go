package rag

import "sync"

// Registry caches which user namespaces currently have data. It is a
// convenience over the store's own contents, never authoritative: a
// stale entry is harmless because an empty-namespace query just returns
// nothing.
type Registry struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{users: map[string]struct{}{}}
}

func (r *Registry) Seed(userIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uid := range userIDs {
		r.users[uid] = struct{}{}
	}
}

func (r *Registry) Mark(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = struct{}{}
}

func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

func (r *Registry) Has(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
