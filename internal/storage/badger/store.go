// Package badger provides a BadgerDB implementation of storage.KVStore.
//
// BadgerDB is an embedded store with no server process, which suits a
// developer running the inspector locally against large spaces.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/scrypster/storyblok-devtools/internal/storage"
)

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables it. Always disabled in memory mode.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction before GC rewrites a file.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for the given directory.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration suited to tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements storage.KVStore on top of a *badger.DB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewStore opens a BadgerDB database and starts value-log GC if configured.
func NewStore(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("badger: create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open database: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{db: db, logger: logger, stop: make(chan struct{})}

	if !cfg.InMemory && cfg.GCInterval > 0 {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.wg.Add(1)
		go s.runGC(cfg.GCInterval, ratio)
	}

	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// Each call rewrites at most one file; loop until nothing is left.
			for {
				err := s.db.RunValueLogGC(ratio)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn("badger value log GC failed", "error", err)
					}
					break
				}
			}
		}
	}
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) || errors.Is(err, badger.ErrEmptyKey) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger: failed to get %q: %w", key, err)
	}
	return value, nil
}

// Set writes value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger: failed to set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger: failed to remove %q: %w", key, err)
	}
	return nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

var _ storage.KVStore = (*Store)(nil)
