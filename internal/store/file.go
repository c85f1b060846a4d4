package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// DefaultFilePath is used when NewFileStore is given an empty path.
const DefaultFilePath = "items.json"

// fileCodec encodes the ordered item list to and from the on-disk format.
type fileCodec interface {
	Marshal(items []model.Item) ([]byte, error)
	Unmarshal(data []byte) ([]model.Item, error)
	Format() string
}

type jsonCodec struct{}

func (jsonCodec) Marshal(items []model.Item) ([]byte, error) {
	return json.MarshalIndent(items, "", "  ")
}

func (jsonCodec) Unmarshal(data []byte) ([]model.Item, error) {
	var items []model.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (jsonCodec) Format() string { return "json" }

type yamlCodec struct{}

func (yamlCodec) Marshal(items []model.Item) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (yamlCodec) Unmarshal(data []byte) ([]model.Item, error) {
	var items []model.Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (yamlCodec) Format() string { return "yaml" }

// codecForPath picks the codec from the file extension; anything other than
// .yaml/.yml is stored as JSON.
func codecForPath(path string) fileCodec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}
	default:
		return jsonCodec{}
	}
}

// FileStore implements Store on a single flat file holding the ordered item list.
//
// The whole list is rewritten on every mutation. A mutation is computed on a copy,
// written to a temp file, fsynced and renamed over the target; the in-memory view
// is replaced only after the rename succeeded.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	codec  fileCodec
	items  *collection
	closed bool
}

// NewFileStore opens the store at path, loading existing items if the file exists.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	s := &FileStore{
		path:  path,
		codec: codecForPath(path),
	}

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	s.items = items

	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) load() (*collection, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newCollection(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return newCollection(), nil
	}

	items, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", s.path, s.codec.Format(), err)
	}

	return loadCollection(items)
}

// write persists items atomically via temp file and rename.
func (s *FileStore) write(items []model.Item) (retErr error) {
	data, err := s.codec.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	return nil
}

// mutate runs fn on a copy of the current items under the write lock, persists
// the result and only then makes it visible.
func (s *FileStore) mutate(op string, fn func(c *collection) (model.Item, error)) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%s: %w", op, ErrClosed)
	}

	next := s.items.clone()
	result, err := fn(next)
	if err != nil {
		return nil, err
	}

	if err := s.write(next.items); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.items = next

	return &result, nil
}

// List returns all items in insertion order.
func (s *FileStore) List(ctx context.Context) ([]model.Item, error) {
	if err := checkContext(ctx, "list items"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.items.list(), nil
}

// Get retrieves an item by its ID.
func (s *FileStore) Get(ctx context.Context, id int64) (*model.Item, error) {
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
func (s *FileStore) NextID(ctx context.Context) (int64, error) {
	if err := checkContext(ctx, "next id"); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.items.nextID()
}

// Insert adds an item and persists the new list before returning.
func (s *FileStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	if err := checkContext(ctx, "insert item"); err != nil {
		return nil, err
	}

	if item == nil {
		return nil, fmt.Errorf("insert item: %w", ErrNilItem)
	}

	return s.mutate("insert item", func(c *collection) (model.Item, error) {
		return c.insert(*item)
	})
}

// Update replaces name and description of an item and persists the change.
func (s *FileStore) Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error) {
	if err := checkContext(ctx, "update item"); err != nil {
		return nil, err
	}

	if item == nil {
		return nil, fmt.Errorf("update item: %w", ErrNilItem)
	}

	return s.mutate("update item", func(c *collection) (model.Item, error) {
		return c.update(id, *item)
	})
}

// Delete removes an item and persists the change.
func (s *FileStore) Delete(ctx context.Context, id int64) (*model.Item, error) {
	if err := checkContext(ctx, "delete item"); err != nil {
		return nil, err
	}

	return s.mutate("delete item", func(c *collection) (model.Item, error) {
		return c.remove(id)
	})
}

// Ping checks that the directory holding the file is still reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := checkContext(ctx, "ping"); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close marks the store closed; later mutations fail with ErrClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
