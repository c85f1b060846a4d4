package store

import (
	"fmt"
	"math"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// collection is an insertion-ordered set of items keyed by ID.
// It is not safe for concurrent use; callers hold their own lock.
type collection struct {
	items []model.Item
	index map[int64]int
}

func newCollection() *collection {
	return &collection{index: make(map[int64]int)}
}

// loadCollection builds a collection from persisted records, rejecting
// records that reuse an ID.
func loadCollection(items []model.Item) (*collection, error) {
	c := &collection{
		items: make([]model.Item, 0, len(items)),
		index: make(map[int64]int, len(items)),
	}
	for _, item := range items {
		if _, exists := c.index[item.ID]; exists {
			return nil, fmt.Errorf("load item %d: %w", item.ID, ErrDuplicateID)
		}
		c.index[item.ID] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

func (c *collection) clone() *collection {
	cp := &collection{
		items: make([]model.Item, len(c.items)),
		index: make(map[int64]int, len(c.index)),
	}
	copy(cp.items, c.items)
	for id, pos := range c.index {
		cp.index[id] = pos
	}
	return cp
}

func (c *collection) list() []model.Item {
	items := make([]model.Item, len(c.items))
	copy(items, c.items)
	return items
}

func (c *collection) get(id int64) (model.Item, bool) {
	pos, ok := c.index[id]
	if !ok {
		return model.Item{}, false
	}
	return c.items[pos], true
}

// nextID is max(existing IDs)+1, or 1 when empty.
func (c *collection) nextID() (int64, error) {
	var maxID int64
	for _, item := range c.items {
		if item.ID > maxID {
			maxID = item.ID
		}
	}
	if maxID == math.MaxInt64 {
		return 0, ErrIDExhausted
	}
	return maxID + 1, nil
}

func (c *collection) insert(item model.Item) (model.Item, error) {
	if item.ID == 0 {
		id, err := c.nextID()
		if err != nil {
			return model.Item{}, err
		}
		item.ID = id
	}
	if _, exists := c.index[item.ID]; exists {
		return model.Item{}, ErrDuplicateID
	}

	c.index[item.ID] = len(c.items)
	c.items = append(c.items, item)
	return item, nil
}

func (c *collection) update(id int64, item model.Item) (model.Item, error) {
	pos, ok := c.index[id]
	if !ok {
		return model.Item{}, ErrNotFound
	}

	updated := model.Item{
		ID:          id,
		Name:        item.Name,
		Description: item.Description,
	}
	c.items[pos] = updated
	return updated, nil
}

func (c *collection) remove(id int64) (model.Item, error) {
	pos, ok := c.index[id]
	if !ok {
		return model.Item{}, ErrNotFound
	}

	removed := c.items[pos]
	c.items = append(c.items[:pos], c.items[pos+1:]...)
	delete(c.index, id)
	for i := pos; i < len(c.items); i++ {
		c.index[c.items[i].ID] = i
	}
	return removed, nil
}
