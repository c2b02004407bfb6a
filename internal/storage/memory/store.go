// Package memory provides a bounded in-process storage.KVStore.
package memory

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/storyblok-devtools/internal/storage"
)

// DefaultCapacity is used when NewStore is given a non-positive capacity.
const DefaultCapacity = 256

// Store keeps values in a least-recently-used cache. Nothing survives a
// restart; it backs tests and short-lived CLI runs.
type Store struct {
	items *lru.Cache[string, []byte]
}

// NewStore creates a store holding at most capacity keys.
func NewStore(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	items, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to create store: %w", err)
	}
	return &Store{items: items}, nil
}

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	s.items.Add(key, append([]byte(nil), value...))
	return nil
}

// Remove deletes key.
func (s *Store) Remove(_ context.Context, key string) error {
	s.items.Remove(key)
	return nil
}

// Len reports the number of stored keys.
func (s *Store) Len() int {
	return s.items.Len()
}

// Close purges all values.
func (s *Store) Close() error {
	s.items.Purge()
	return nil
}

var _ storage.KVStore = (*Store)(nil)
