package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Store holds encoded documents grouped by collection.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{collections: map[string]map[string][]byte{}}
}

// Put encodes doc and stores it under collection and id, replacing any
// previous version.
func (s *Store) Put(_ context.Context, collection, id string, doc any) error {
	if collection == "" || id == "" {
		return fmt.Errorf("docstore: collection and id are required")
	}
	raw, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = map[string][]byte{}
		s.collections[collection] = docs
	}
	docs[id] = raw
	return nil
}

// Load decodes the document stored under collection and id into out.
func (s *Store) Load(_ context.Context, collection, id string, out any) error {
	s.mu.RLock()
	raw, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err := msgpack.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the document stored under collection and id.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	if _, ok := docs[id]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	delete(docs, id)
	return nil
}

// IDs lists the document ids of collection in sorted order.
func (s *Store) IDs(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
