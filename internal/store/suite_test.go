package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// storeFactory returns a fresh, empty Store. Cleanup is registered on t.
type storeFactory func(t *testing.T) Store

// runStoreSuite exercises the behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Helper()

	t.Run("insert assigns id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Insert(ctx, &model.Item{Name: "Test Item", Description: "d"})
		if err != nil {
			t.Fatalf("Insert() unexpected error: %v", err)
		}
		if created.ID != 1 {
			t.Errorf("ID = %d, want 1 on empty store", created.ID)
		}
		if created.Name != "Test Item" || created.Description != "d" {
			t.Errorf("Insert() = %+v", created)
		}
	})

	t.Run("insert keeps explicit id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.Insert(ctx, &model.Item{ID: 42, Name: "n", Description: ""})
		if err != nil {
			t.Fatalf("Insert() unexpected error: %v", err)
		}
		if created.ID != 42 {
			t.Errorf("ID = %d, want 42", created.ID)
		}

		next, err := s.Insert(ctx, &model.Item{Name: "after", Description: ""})
		if err != nil {
			t.Fatalf("Insert() unexpected error: %v", err)
		}
		if next.ID != 43 {
			t.Errorf("auto ID after explicit 42 = %d, want 43", next.ID)
		}
	})

	t.Run("insert duplicate id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Insert(ctx, &model.Item{ID: 2, Name: "first", Description: ""}); err != nil {
			t.Fatalf("Insert() unexpected error: %v", err)
		}

		_, err := s.Insert(ctx, &model.Item{ID: 2, Name: "second", Description: ""})
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("Insert() error = %v, want %v", err, ErrDuplicateID)
		}

		got, err := s.Get(ctx, 2)
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if got.Name != "first" {
			t.Errorf("duplicate insert mutated store: Name = %s, want first", got.Name)
		}
	})

	t.Run("insert nil item", func(t *testing.T) {
		s := newStore(t)

		if _, err := s.Insert(context.Background(), nil); !errors.Is(err, ErrNilItem) {
			t.Errorf("Insert(nil) error = %v, want %v", err, ErrNilItem)
		}
	})

	t.Run("get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		created, _ := s.Insert(ctx, &model.Item{Name: "Test Item", Description: "d"})

		tests := []struct {
			name    string
			id      int64
			wantErr error
		}{
			{name: "existing item", id: created.ID},
			{name: "non-existing item", id: 999, wantErr: ErrNotFound},
			{name: "zero id", id: 0, wantErr: ErrNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.Get(ctx, tt.id)
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
					}
					return
				}
				if err != nil {
					t.Fatalf("Get() unexpected error: %v", err)
				}
				if *got != *created {
					t.Errorf("Get() = %+v, want %+v", got, created)
				}
			})
		}
	})

	t.Run("next id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.NextID(ctx)
		if err != nil {
			t.Fatalf("NextID() unexpected error: %v", err)
		}
		if id != 1 {
			t.Errorf("NextID() on empty store = %d, want 1", id)
		}

		_, _ = s.Insert(ctx, &model.Item{ID: 5, Name: "a", Description: ""})
		_, _ = s.Insert(ctx, &model.Item{ID: 3, Name: "b", Description: ""})

		id, err = s.NextID(ctx)
		if err != nil {
			t.Fatalf("NextID() unexpected error: %v", err)
		}
		if id != 6 {
			t.Errorf("NextID() = %d, want 6", id)
		}
	})

	t.Run("auto ids stay unique after max id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Insert(ctx, &model.Item{ID: math.MaxInt64, Name: "max", Description: ""}); err != nil {
			t.Fatalf("Insert(MaxInt64) unexpected error: %v", err)
		}

		for _, name := range []string{"a", "b"} {
			created, err := s.Insert(ctx, &model.Item{Name: name, Description: ""})
			if err != nil {
				if !errors.Is(err, ErrIDExhausted) {
					t.Errorf("Insert(%s) error = %v, want nil or %v", name, err, ErrIDExhausted)
				}
				continue
			}
			if created.ID <= 0 {
				t.Errorf("Insert(%s) assigned id %d, want positive", name, created.ID)
			}
		}

		items, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		seen := make(map[int64]bool, len(items))
		for _, item := range items {
			if seen[item.ID] {
				t.Errorf("id %d stored twice: %+v", item.ID, items)
			}
			seen[item.ID] = true
		}
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		items, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("List() on empty store returned %d items", len(items))
		}

		for _, name := range []string{"a", "b", "c"} {
			if _, err := s.Insert(ctx, &model.Item{Name: name, Description: ""}); err != nil {
				t.Fatalf("Insert() unexpected error: %v", err)
			}
		}

		items, err = s.List(ctx)
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("List() returned %d items, want 3", len(items))
		}
		for i, want := range []string{"a", "b", "c"} {
			if items[i].Name != want {
				t.Errorf("items[%d].Name = %s, want %s", i, items[i].Name, want)
			}
		}
	})

	t.Run("update replaces fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		created, _ := s.Insert(ctx, &model.Item{Name: "old", Description: "old desc"})

		updated, err := s.Update(ctx, created.ID, &model.Item{ID: 777, Name: "A", Description: "B"})
		if err != nil {
			t.Fatalf("Update() unexpected error: %v", err)
		}

		want := model.Item{ID: created.ID, Name: "A", Description: "B"}
		if *updated != want {
			t.Errorf("Update() = %+v, want %+v", updated, want)
		}

		got, err := s.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if *got != want {
			t.Errorf("Get() after Update() = %+v, want %+v", got, want)
		}
		if _, err := s.Get(ctx, 777); !errors.Is(err, ErrNotFound) {
			t.Errorf("payload id must not be used: Get(777) error = %v", err)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Update(context.Background(), 999, &model.Item{Name: "x", Description: ""})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Update() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("update nil item", func(t *testing.T) {
		s := newStore(t)

		if _, err := s.Update(context.Background(), 1, nil); !errors.Is(err, ErrNilItem) {
			t.Errorf("Update(nil) error = %v, want %v", err, ErrNilItem)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		created, _ := s.Insert(ctx, &model.Item{Name: "gone", Description: "soon"})

		removed, err := s.Delete(ctx, created.ID)
		if err != nil {
			t.Fatalf("Delete() unexpected error: %v", err)
		}
		if *removed != *created {
			t.Errorf("Delete() = %+v, want %+v", removed, created)
		}

		if _, err := s.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after Delete() error = %v, want %v", err, ErrNotFound)
		}
		if _, err := s.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)

		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("Ping() unexpected error: %v", err)
		}
	})

	t.Run("concurrent auto ids are unique", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const numInserts = 50

		var wg sync.WaitGroup
		ids := make(chan int64, numInserts)
		errs := make(chan error, numInserts)

		for i := 0; i < numInserts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := s.Insert(ctx, &model.Item{Name: "concurrent", Description: ""})
				if err != nil {
					errs <- err
					return
				}
				ids <- created.ID
			}()
		}
		wg.Wait()
		close(ids)
		close(errs)

		for err := range errs {
			t.Errorf("Insert() unexpected error: %v", err)
		}

		seen := make(map[int64]bool, numInserts)
		for id := range ids {
			if seen[id] {
				t.Errorf("duplicate id assigned: %d", id)
			}
			seen[id] = true
		}
		if len(seen) != numInserts {
			t.Errorf("got %d unique ids, want %d", len(seen), numInserts)
		}
	})

	t.Run("concurrent explicit id has one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const numInserts = 20

		var wg sync.WaitGroup
		var mu sync.Mutex
		var successes, duplicates int

		for i := 0; i < numInserts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Insert(ctx, &model.Item{ID: 7, Name: "race", Description: ""})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrDuplicateID):
					duplicates++
				default:
					t.Errorf("Insert() unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if successes != 1 {
			t.Errorf("successes = %d, want 1", successes)
		}
		if duplicates != numInserts-1 {
			t.Errorf("duplicates = %d, want %d", duplicates, numInserts-1)
		}
	})
}
