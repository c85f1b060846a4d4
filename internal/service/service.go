// Package service implements request-level item CRUD semantics on top of a store.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/item-service/internal/model"
	"github.com/vyrodovalexey/item-service/internal/store"
)

// EventPublisher receives an event for every committed item change.
// Publish must not block.
type EventPublisher interface {
	Publish(event model.ItemEvent)
}

// ItemService orchestrates CRUD calls against a store.Store. It keeps no state
// beyond its collaborators; the store is the single shared mutable resource.
type ItemService struct {
	store  store.Store
	logger *zap.Logger
	events EventPublisher
}

// New creates an ItemService. events may be nil.
func New(s store.Store, logger *zap.Logger, events EventPublisher) *ItemService {
	return &ItemService{
		store:  s,
		logger: logger,
		events: events,
	}
}

// ListItems returns all items.
func (s *ItemService) ListItems(ctx context.Context) ([]model.Item, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// GetItem returns the item with id or ErrNotFound.
func (s *ItemService) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translate("get item", id, err)
	}
	return item, nil
}

// CreateItem validates and stores a new item. A supplied ID is checked up front
// so a taken ID fails with DuplicateIDError before any write; the store's own
// uniqueness check still decides races between concurrent creates.
func (s *ItemService) CreateItem(ctx context.Context, input model.ItemInput) (*model.Item, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	item := input.ToItem()

	if input.ID != nil {
		_, err := s.store.Get(ctx, item.ID)
		switch {
		case err == nil:
			return nil, &DuplicateIDError{ID: item.ID}
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("check item %d: %w", item.ID, err)
		}
	}

	created, err := s.store.Insert(ctx, &item)
	if err != nil {
		return nil, translate("create item", item.ID, err)
	}

	s.logger.Debug("item created", zap.Int64("id", created.ID))
	s.publish(model.EventItemCreated, *created)

	return created, nil
}

// UpdateItem fully replaces name and description of the item at id. The path id
// is authoritative; input.ID is ignored.
func (s *ItemService) UpdateItem(ctx context.Context, id int64, input model.ItemInput) (*model.Item, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	fields := input.ToItem()
	fields.ID = id

	updated, err := s.store.Update(ctx, id, &fields)
	if err != nil {
		return nil, translate("update item", id, err)
	}

	s.logger.Debug("item updated", zap.Int64("id", id))
	s.publish(model.EventItemUpdated, *updated)

	return updated, nil
}

// DeleteItem removes the item at id and returns it.
func (s *ItemService) DeleteItem(ctx context.Context, id int64) (*model.Item, error) {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, translate("delete item", id, err)
	}

	s.logger.Debug("item deleted", zap.Int64("id", id))
	s.publish(model.EventItemDeleted, *removed)

	return removed, nil
}

// Ready reports whether the store can serve requests.
func (s *ItemService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	return nil
}

func (s *ItemService) publish(eventType string, item model.Item) {
	if s.events == nil {
		return
	}
	s.events.Publish(model.NewItemEvent(eventType, item))
}

// translate maps store errors onto service errors. Anything that is not a
// domain error stays wrapped as a generic failure.
func translate(op string, id int64, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicateID):
		return &DuplicateIDError{ID: id}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
