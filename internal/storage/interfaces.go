// Package storage defines the key-value capability the inspector persists
// its caches through.
//
// Backends live in sub-packages (memory, sqlite, postgres, badger) and are
// selected at startup by the connections package. Callers depend only on
// KVStore, which keeps the caches testable with the in-memory backend.
package storage

import "context"

// KVStore is a minimal persistent key-value store.
//
// Values are opaque byte slices; callers own serialization. Implementations
// must be safe for concurrent use.
type KVStore interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
