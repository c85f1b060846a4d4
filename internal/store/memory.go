package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
// Items are listed in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	items *collection
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: newCollection(),
	}
}

// List returns all items from the store.
func (s *MemoryStore) List(ctx context.Context) ([]model.Item, error) {
	if err := checkContext(ctx, "list items"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.items.list(), nil
}

// Get retrieves an item by its ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	if err := checkContext(ctx, "get item"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items.get(id)
	if !ok {
		return nil, ErrNotFound
	}

	return &item, nil
}

// NextID returns max(existing IDs)+1, or 1 for an empty store.
func (s *MemoryStore) NextID(ctx context.Context) (int64, error) {
	if err := checkContext(ctx, "next id"); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.items.nextID()
}

// Insert adds an item. The ID check and ID assignment happen under the write lock.
func (s *MemoryStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	if err := checkContext(ctx, "insert item"); err != nil {
		return nil, err
	}

	if item == nil {
		return nil, fmt.Errorf("insert item: %w", ErrNilItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.items.insert(*item)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// Update modifies an existing item in the store.
func (s *MemoryStore) Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error) {
	if err := checkContext(ctx, "update item"); err != nil {
		return nil, err
	}

	if item == nil {
		return nil, fmt.Errorf("update item: %w", ErrNilItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.items.update(id, *item)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Delete removes an item from the store by its ID.
func (s *MemoryStore) Delete(ctx context.Context, id int64) (*model.Item, error) {
	if err := checkContext(ctx, "delete item"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.items.remove(id)
	if err != nil {
		return nil, err
	}

	return &removed, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return checkContext(ctx, "ping")
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
