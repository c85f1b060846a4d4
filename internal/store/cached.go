package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// ItemCache is a best-effort lookaside cache for single items.
// A miss is reported as a non-nil error; CachedStore treats every cache error as a miss.
type ItemCache interface {
	Get(ctx context.Context, id int64) (*model.Item, error)
	Set(ctx context.Context, item model.Item) error
	Delete(ctx context.Context, id int64) error
}

// CachedStore serves Get from an ItemCache and invalidates entries after every
// committed mutation of the wrapped Store. The wrapped Store stays the source of
// truth; cache failures never fail a call.
//
// A read-through fill is dropped when any mutation completed while the read was
// in flight, so an item read before a delete cannot be cached after it.
type CachedStore struct {
	Store
	cache  ItemCache
	logger *zap.Logger

	// mu orders fills against invalidations; generation counts invalidations.
	mu         sync.Mutex
	generation uint64
}

// NewCachedStore wraps next with cache.
func NewCachedStore(next Store, cache ItemCache, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		Store:  next,
		cache:  cache,
		logger: logger,
	}
}

// Get returns the cached item when present, otherwise reads through and fills the cache.
func (s *CachedStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	if item, err := s.cache.Get(ctx, id); err == nil && item != nil {
		return item, nil
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	item, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.fill(ctx, gen, *item)
	return item, nil
}

// fill caches item unless an invalidation happened after gen was taken.
func (s *CachedStore) fill(ctx context.Context, gen uint64, item model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("cache fill skipped after concurrent write", zap.Int64("id", item.ID))
		return
	}
	if err := s.cache.Set(ctx, item); err != nil {
		s.logger.Debug("cache set failed", zap.Int64("id", item.ID), zap.Error(err))
	}
}

// Insert adds the item and drops any stale entry left under its ID.
func (s *CachedStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	created, err := s.Store.Insert(ctx, item)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.ID)
	return created, nil
}

// Update modifies the item and invalidates its cache entry.
func (s *CachedStore) Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error) {
	updated, err := s.Store.Update(ctx, id, item)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// Delete removes the item and invalidates its cache entry.
func (s *CachedStore) Delete(ctx context.Context, id int64) (*model.Item, error) {
	removed, err := s.Store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return removed, nil
}

func (s *CachedStore) invalidate(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}
