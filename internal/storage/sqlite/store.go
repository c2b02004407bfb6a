// Package sqlite provides a SQLite implementation of storage.KVStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/storyblok-devtools/internal/storage"
)

// Schema creates the key-value table. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store implements storage.KVStore using SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) a SQLite store with WAL self-healing.
// If the initial open fails due to stale WAL files (left behind by a crashed
// process), it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files. A nil logger discards output.
func NewStore(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := openStore(dsn)
	if err == nil {
		store.logger = logger
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath, logger)

	store, retryErr := openStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}
	store.logger = logger

	logger.Warn("recovered from stale WAL files", "path", dbPath)
	return store, nil
}

// openStore opens a SQLite database, configures WAL mode, and creates the schema.
func openStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get %q: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite: failed to remove %q: %w", key, err)
	}
	return nil
}

// GetDB returns the underlying database connection.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("WAL checkpoint on close failed", "error", err)
	}

	return s.db.Close()
}

var _ storage.KVStore = (*Store)(nil)

func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash (SIGKILL, OOM, etc.).
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale checks whether -shm/-wal files exist for the given database path
// AND no other process currently holds them open (via lsof).
// Returns false if lsof is unavailable.
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		// lsof exits 1 when no process has the files open.
		return true
	}

	return strings.TrimSpace(string(output)) == ""
}

func removeStaleWAL(dbPath string, logger *slog.Logger) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove stale WAL file", "path", path, "error", err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
