package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteMemory = "file::memory:?cache=shared"

// SQLiteCache stores entries in a SQLite database.
type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	now        func() time.Time
}

// NewSQLiteCache creates a new cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteCache(filename string) (SQLiteCache, error) {
	if filename == "" {
		filename = sqliteMemory
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteCache{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			expires INTEGER,
			stored_at INTEGER,
			bytes BLOB
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteCache{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
		now:        time.Now,
	}, nil
}

func (s SQLiteCache) Has(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM cache WHERE key = ? AND expires > ?", key, s.now().UnixNano(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

func (s SQLiteCache) Get(ctx context.Context, key string) (Entry, error) {
	var expires int64
	var bytes []byte
	err := s.db.QueryRowContext(ctx, "SELECT expires, bytes FROM cache WHERE key = ?", key).Scan(&expires, &bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !s.now().Before(time.Unix(0, expires)) {
		s.purge(ctx, key)
		return Entry{}, ErrNotFound
	}
	var entry Entry
	if err := entry.UnmarshalBinary(bytes); err != nil {
		// a corrupted entry is as good as a missing one
		s.purge(ctx, key)
		return Entry{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return entry, nil
}

func (s SQLiteCache) Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	bytes, err := entry.MarshalBinary()
	if err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, expires, stored_at, bytes) VALUES (?, ?, ?, ?)",
		key, s.now().Add(ttl).UnixNano(), entry.StoredAt.UnixNano(), bytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s SQLiteCache) Flush(ctx context.Context) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (s SQLiteCache) Close() error {
	return s.db.Close()
}

func (s SQLiteCache) purge(ctx context.Context, key string) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key)
}

var _ Store = SQLiteCache{}
