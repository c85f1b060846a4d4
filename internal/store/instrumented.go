package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// Prometheus metrics.
var (
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "item_store_operation_duration_seconds",
			Help:    "Item store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "item_store_operations_total",
			Help: "Total number of item store operations by result",
		},
		[]string{"backend", "operation", "result"},
	)
)

// Operation results recorded in item_store_operations_total.
const (
	resultOK          = "ok"
	resultNotFound    = "not_found"
	resultDuplicateID = "duplicate_id"
	resultError       = "error"
)

// InstrumentedStore records Prometheus metrics for every call to the wrapped Store.
type InstrumentedStore struct {
	next    Store
	backend string
}

// NewInstrumentedStore wraps next; backend labels the recorded series.
func NewInstrumentedStore(next Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend}
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	storeOperationDuration.WithLabelValues(s.backend, operation).Observe(time.Since(start).Seconds())
	storeOperationsTotal.WithLabelValues(s.backend, operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	case errors.Is(err, ErrDuplicateID):
		return resultDuplicateID
	default:
		return resultError
	}
}

// List implements Store.
func (s *InstrumentedStore) List(ctx context.Context) ([]model.Item, error) {
	start := time.Now()
	items, err := s.next.List(ctx)
	s.observe("list", start, err)
	return items, err
}

// Get implements Store.
func (s *InstrumentedStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	start := time.Now()
	item, err := s.next.Get(ctx, id)
	s.observe("get", start, err)
	return item, err
}

// NextID implements Store.
func (s *InstrumentedStore) NextID(ctx context.Context) (int64, error) {
	start := time.Now()
	id, err := s.next.NextID(ctx)
	s.observe("next_id", start, err)
	return id, err
}

// Insert implements Store.
func (s *InstrumentedStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	start := time.Now()
	created, err := s.next.Insert(ctx, item)
	s.observe("insert", start, err)
	return created, err
}

// Update implements Store.
func (s *InstrumentedStore) Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error) {
	start := time.Now()
	updated, err := s.next.Update(ctx, id, item)
	s.observe("update", start, err)
	return updated, err
}

// Delete implements Store.
func (s *InstrumentedStore) Delete(ctx context.Context, id int64) (*model.Item, error) {
	start := time.Now()
	removed, err := s.next.Delete(ctx, id)
	s.observe("delete", start, err)
	return removed, err
}

// Ping implements Store.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close implements Store.
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
