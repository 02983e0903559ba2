package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/agentrun/core"
)

// InMemoryStore is a volatile Store implementation keeping message history in
// a process-local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo setups. Returned histories are copies to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]core.Content
}

// NewInMemoryStore constructs an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]core.Content)}
}

// History implements Store. Unknown thread keys yield an empty slice.
func (s *InMemoryStore) History(_ context.Context, threadKey string) ([]core.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.threads[threadKey]
	out := make([]core.Content, len(history))
	copy(out, history)
	return out, nil
}

// Append implements Store.
func (s *InMemoryStore) Append(_ context.Context, threadKey string, contents ...core.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadKey] = append(s.threads[threadKey], contents...)
	return nil
}

// PurgeExact deletes the history of exactly one thread key.
func (s *InMemoryStore) PurgeExact(threadKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadKey)
}

// PurgePrefix deletes the histories of all thread keys with the given prefix.
func (s *InMemoryStore) PurgePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.threads {
		if strings.HasPrefix(key, prefix) {
			delete(s.threads, key)
		}
	}
}

// ThreadCount reports the number of threads currently stored.
func (s *InMemoryStore) ThreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
