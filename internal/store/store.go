// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// Store errors.
var (
	ErrNotFound    = errors.New("item not found")
	ErrDuplicateID = errors.New("item id already in use")
	ErrNilItem     = errors.New("item cannot be nil")
	ErrClosed      = errors.New("store is closed")
	ErrIDExhausted = errors.New("no item id left to assign")
)

// Store defines the interface for item storage operations.
//
// An item passed to Insert with ID 0 has its ID assigned by the store; once no
// ID above the current maximum is left, Insert fails with ErrIDExhausted.
// Implementations must be safe for concurrent use: two concurrent inserts never
// receive the same assigned ID, and two concurrent inserts with the same explicit
// ID result in exactly one ErrDuplicateID.
type Store interface {
	// List returns all items from the store.
	List(ctx context.Context) ([]model.Item, error)

	// Get retrieves an item by its ID.
	Get(ctx context.Context, id int64) (*model.Item, error)

	// NextID returns an ID not currently in use.
	NextID(ctx context.Context) (int64, error)

	// Insert adds an item and returns it with its final ID.
	Insert(ctx context.Context, item *model.Item) (*model.Item, error)

	// Update replaces the name and description of an existing item.
	Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error)

	// Delete removes an item and returns it.
	Delete(ctx context.Context, id int64) (*model.Item, error)

	// Ping reports whether the backing medium is usable.
	Ping(ctx context.Context) error

	// Close releases the backing medium.
	Close() error
}

// checkContext returns a wrapped context error if ctx is already done.
func checkContext(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}
