package resultcache

import "sync"

// Registry hands out one Store per session. Stores are created lazily on
// first use and dropped on logout; nothing is shared across sessions.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

func (r *Registry) For(sessionKey string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[sessionKey]
	if !ok {
		store = NewStore()
		r.stores[sessionKey] = store
	}
	return store
}

func (r *Registry) Drop(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, sessionKey)
}
