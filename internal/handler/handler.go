// Package handler provides HTTP request handlers for the item API.
package handler

import (
	"context"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// ItemService is the item CRUD surface the REST handler depends on.
type ItemService interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	CreateItem(ctx context.Context, input model.ItemInput) (*model.Item, error)
	UpdateItem(ctx context.Context, id int64, input model.ItemInput) (*model.Item, error)
	DeleteItem(ctx context.Context, id int64) (*model.Item, error)
	Ready(ctx context.Context) error
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}
