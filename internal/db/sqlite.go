package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the per-device store backed by SQLite. It holds two
// independent namespaces: image blobs and JSON progress blobs.
type Database struct {
	conn  *sql.DB
	locks keyLocks
}

const schema = `
CREATE TABLE IF NOT EXISTS images (
    key TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS progress (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// NewDatabase opens the database and initializes the schema
func NewDatabase(dbPath string) (*Database, error) {
	memory := dbPath == ":memory:"
	if memory {
		// A private in-memory database per connection pool; a single
		// connection keeps every query on the same database.
		dbPath = "file::memory:"
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Database{conn: conn}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// PutImage stores or replaces the image for key
func (db *Database) PutImage(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("image key cannot be empty")
	}
	query := `INSERT INTO images (key, data) VALUES (?, ?)
	          ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = CURRENT_TIMESTAMP`
	if _, err := db.conn.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("%w: failed to save image: %v", ErrUnavailable, err)
	}
	return nil
}

// GetImage returns the stored image for key or ErrNotFound
func (db *Database) GetImage(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM images WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get image: %v", ErrUnavailable, err)
	}
	return data, nil
}

// ImageCount returns the number of cached images
func (db *Database) ImageCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// GetProgress returns the raw JSON blob stored under key or ErrNotFound
func (db *Database) GetProgress(ctx context.Context, key string) ([]byte, error) {
	return db.getProgress(ctx, db.conn, key)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *Database) getProgress(ctx context.Context, q queryRower, key string) ([]byte, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM progress WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get progress: %v", ErrUnavailable, err)
	}
	return []byte(value), nil
}

// UpdateProgress runs a read-modify-write of the blob under key. Calls for
// the same key are serialised; fn receives nil when nothing is stored yet.
// Returning a nil slice from fn leaves the stored value untouched.
func (db *Database) UpdateProgress(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if key == "" {
		return fmt.Errorf("progress key cannot be empty")
	}
	unlock := db.locks.lock(key)
	defer unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := db.getProgress(ctx, tx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	if !json.Valid(next) {
		return fmt.Errorf("progress value for %q is not valid JSON", key)
	}

	query := `INSERT INTO progress (key, value) VALUES (?, ?)
	          ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.ExecContext(ctx, query, key, string(next)); err != nil {
		return fmt.Errorf("%w: failed to save progress: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit progress: %v", ErrUnavailable, err)
	}
	return nil
}

// ListProgress returns every progress blob ordered by key
func (db *Database) ListProgress(ctx context.Context) ([]*ProgressEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value, updated_at FROM progress ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var entries []*ProgressEntry
	for rows.Next() {
		var (
			entry ProgressEntry
			value string
		)
		if err := rows.Scan(&entry.Key, &value, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		entry.Value = json.RawMessage(value)
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// ExportToJSON writes every progress blob to a JSON file
func (db *Database) ExportToJSON(ctx context.Context, filePath string) error {
	entries, err := db.ListProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to list progress for export: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// keyLocks hands out one mutex per key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
