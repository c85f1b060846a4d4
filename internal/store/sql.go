package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vyrodovalexey/item-service/internal/model"
)

// Default connection targets.
const (
	DefaultSQLitePath  = "items.db"
	DefaultPostgresDSN = "postgres://localhost/items?sslmode=disable"
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation       = "23505"
	pgSequenceLimitExceeded = "2200H"
)

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name   string
	driver string
	schema []string
	// lockForInsert serializes inserts so an explicit ID and a sequence-assigned
	// ID cannot race each other. Empty when the backend already serializes writers.
	lockForInsert string
	// afterExplicitInsert realigns the native ID generator past an explicit ID.
	afterExplicitInsert string
	positional          bool
	isUniqueViolation   func(err error) bool
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS ix_items_name ON items (name)`,
		`CREATE INDEX IF NOT EXISTS ix_items_description ON items (description)`,
	},
	isUniqueViolation: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Extended result codes disabled; the primary key is the only
			// constraint an insert can break.
			return true
		}
		return false
	},
}

var postgresDialect = dialect{
	name:   "postgres",
	driver: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS ix_items_name ON items (name)`,
		`CREATE INDEX IF NOT EXISTS ix_items_description ON items (description)`,
	},
	lockForInsert:       `LOCK TABLE items IN SHARE ROW EXCLUSIVE MODE`,
	afterExplicitInsert: `SELECT setval(pg_get_serial_sequence('items', 'id'), (SELECT MAX(id) FROM items))`,
	positional:          true,
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
	},
}

// rebind rewrites ? placeholders into $n for dialects that need positional ones.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Store on a single relational table keyed by id.
// Uniqueness is enforced by the primary key; violations surface as ErrDuplicateID.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens (or creates) a SQLite database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db, sqliteDialect)
}

// NewPostgresStore connects to PostgreSQL using dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = DefaultPostgresDSN
	}

	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return &SQLStore{db: db, dialect: d}, nil
}

// DB exposes the underlying sql.DB for tests.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the backend name ("sqlite" or "postgres").
func (s *SQLStore) Dialect() string { return s.dialect.name }

// withTx runs fn in a transaction, committing on success and rolling back on
// every other exit path.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	if err := row.Scan(&item.ID, &item.Name, &item.Description); err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns all items ordered by id.
func (s *SQLStore) List(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]model.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

// Get retrieves an item by its ID.
func (s *SQLStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT id, name, description FROM items WHERE id = ?`), id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return item, nil
}

// NextID reports MAX(id)+1. Insert does not use it; IDs for items without one
// come from the backend's native auto-increment.
func (s *SQLStore) NextID(ctx context.Context) (int64, error) {
	var maxID int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM items`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("query next id: %w", err)
	}
	if maxID == math.MaxInt64 {
		return 0, ErrIDExhausted
	}
	return maxID + 1, nil
}

// Insert adds an item. An item with ID 0 receives the backend-assigned ID.
func (s *SQLStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("insert item: %w", ErrNilItem)
	}

	created := *item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if s.dialect.lockForInsert != "" {
			if _, err := tx.ExecContext(ctx, s.dialect.lockForInsert); err != nil {
				return fmt.Errorf("lock items: %w", err)
			}
		}

		if created.ID == 0 {
			row := tx.QueryRowContext(ctx,
				s.dialect.rebind(`INSERT INTO items (name, description) VALUES (?, ?) RETURNING id`),
				created.Name, created.Description)
			if err := row.Scan(&created.ID); err != nil {
				return s.mapInsertError(err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			s.dialect.rebind(`INSERT INTO items (id, name, description) VALUES (?, ?, ?)`),
			created.ID, created.Name, created.Description); err != nil {
			return s.mapInsertError(err)
		}

		if s.dialect.afterExplicitInsert != "" {
			if _, err := tx.ExecContext(ctx, s.dialect.afterExplicitInsert); err != nil {
				return fmt.Errorf("realign id sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (s *SQLStore) mapInsertError(err error) error {
	if s.dialect.isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if isSequenceExhausted(err) {
		return ErrIDExhausted
	}
	return fmt.Errorf("insert item: %w", err)
}

// Update replaces the name and description of an existing item.
func (s *SQLStore) Update(ctx context.Context, id int64, item *model.Item) (*model.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("update item: %w", ErrNilItem)
	}

	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`UPDATE items SET name = ?, description = ? WHERE id = ? RETURNING id, name, description`),
		item.Name, item.Description, id)

	updated, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return updated, nil
}

// Delete removes an item and returns it.
func (s *SQLStore) Delete(ctx context.Context, id int64) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`DELETE FROM items WHERE id = ? RETURNING id, name, description`), id)

	removed, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete item: %w", err)
	}
	return removed, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect.name, err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// isSequenceExhausted reports a PostgreSQL sequence that has reached its
// maximum value. SQLite picks an unused rowid instead of failing.
func isSequenceExhausted(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgSequenceLimitExceeded
}
