package memory

import (
	"context"
	"sync"
)

// DocumentStore is a mutex-guarded URL to content map. Entries never expire.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewDocumentStore constructs an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]string)}
}

// Get returns the cached content for url.
func (s *DocumentStore) Get(_ context.Context, url string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[url]
	return content, ok, nil
}

// PutIfAbsent stores content unless url is already present.
func (s *DocumentStore) PutIfAbsent(_ context.Context, url string, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[url]; exists {
		return false, nil
	}
	s.docs[url] = content
	return true, nil
}

// Len reports how many documents are cached.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
