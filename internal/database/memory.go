package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryDoc struct {
	data      []byte
	updatedAt time.Time
}

// MemoryStore is an in-process DocumentStore. Documents are stored as encoded JSON
// so callers never share memory with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryDoc
}

var _ DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]memoryDoc),
	}
}

// Load decodes a stored document into dst
func (s *MemoryStore) Load(ctx context.Context, collection, id string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	doc, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if err := json.Unmarshal(doc.data, dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create stores a document unless it already exists
func (s *MemoryStore) Create(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[collection][id]; exists {
		return ErrAlreadyExists
	}
	s.put(collection, id, data)
	return nil
}

// Overwrite stores a document, replacing any previous version
func (s *MemoryStore) Overwrite(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(collection, id, data)
	return nil
}

// Delete removes a document if present
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

// All returns a snapshot of a collection ordered by id
func (s *MemoryStore) All(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		data := make([]byte, len(doc.data))
		copy(data, doc.data)
		docs = append(docs, Document{ID: id, Data: data, UpdatedAt: doc.updatedAt})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Count returns the number of documents in a collection
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *MemoryStore) put(collection, id string, data []byte) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memoryDoc)
		s.collections[collection] = docs
	}
	docs[id] = memoryDoc{data: data, updatedAt: time.Now()}
}
