package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const createEntriesSQL = `
CREATE TABLE IF NOT EXISTS entries (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SqliteStore keeps entries in a single SQLite database file. Unlike the
// file store it survives key enumeration and keeps the cache in one inode,
// which plays better with backup tooling.
type SqliteStore struct {
	db    *sql.DB
	codec *Codec
}

// OpenSqliteStore opens (or creates) the database at path and ensures the
// schema. WAL journal mode keeps concurrent readers off the writer's lock.
func OpenSqliteStore(path string, codec *Codec) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite store dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	if _, err := db.Exec(createEntriesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store schema: %w", err)
	}
	return &SqliteStore{db: db, codec: codec}, nil
}

func (s *SqliteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return s.codec.Decode(data)
}

func (s *SqliteStore) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := s.codec.Encode(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, data)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (s *SqliteStore) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("sqlite purge: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SqliteStore) Close() error { return s.db.Close() }
