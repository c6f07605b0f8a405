// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/managebug/managebug/internal/storage"
)

// Store implements the Storage interface using SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

var _ storage.Storage = (*Store)(nil)

// setupWASMCache configures WASM compilation caching so the embedded
// SQLite build is compiled once per machine instead of on every
// process start. Falls back to an in-memory cache if the user cache
// directory is unavailable.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "managebug", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// New creates a SQLite store at the given path. ":memory:" opens a
// shared in-memory database pinned to a single connection so every
// query sees the same data.
func New(ctx context.Context, path string) (*Store, error) {
	var connStr string
	isInMemory := path == ":memory:" ||
		(strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory"))
	switch {
	case path == ":memory:":
		// WAL does not work for shared in-memory databases.
		connStr = "file:memdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(10000)&_time_format=sqlite"
	case strings.HasPrefix(path, "file:"):
		connStr = path
		if !strings.Contains(path, "_pragma=foreign_keys") {
			connStr += "&_pragma=foreign_keys(ON)&_pragma=busy_timeout(10000)&_time_format=sqlite"
		}
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(10000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isInMemory {
		// In-memory databases are isolated per connection by default;
		// without this, pooled connections cannot see each other's writes.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// WAL supports one writer and many readers; cap the pool so
		// writers do not pile up on the write lock.
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.applySchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close implements storage.Storage. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// isUniqueViolation reports whether the error is a SQLite uniqueness
// constraint failure, which the storage contract maps to ErrDuplicate.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
