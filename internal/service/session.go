package service

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SessionStore keeps a bounded number of sessions by ID. The least recently
// used session is evicted when the store is full.
type SessionStore[V any] struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, V]
	create func(id string) V
}

// NewSessionStore creates a store of up to size sessions. create builds a
// session on first use; onEvict, when set, runs for evicted and removed
// sessions.
func NewSessionStore[V any](size int, create func(id string) V, onEvict func(id string, v V)) *SessionStore[V] {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.NewWithEvict[string, V](size, onEvict)
	return &SessionStore[V]{cache: c, create: create}
}

// GetOrCreate returns the session for id, creating it if needed.
func (s *SessionStore[V]) GetOrCreate(id string) (v V, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(id); ok {
		return v, false
	}
	v = s.create(id)
	s.cache.Add(id, v)
	return v, true
}

// Get returns the session for id without creating one.
func (s *SessionStore[V]) Get(id string) (V, bool) {
	return s.cache.Get(id)
}

// Remove drops the session for id.
func (s *SessionStore[V]) Remove(id string) bool {
	return s.cache.Remove(id)
}

// Len returns the number of live sessions.
func (s *SessionStore[V]) Len() int {
	return s.cache.Len()
}

// Purge evicts every session.
func (s *SessionStore[V]) Purge() {
	s.cache.Purge()
}
