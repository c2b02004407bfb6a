package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/storage"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// StoryListKey is the store key holding the cached story picker list.
const StoryListKey = "storyblokDevTools::storyList"

type storyListDocument struct {
	Scope     string               `json:"scope"`
	Timestamp time.Time            `json:"timestamp"`
	Stories   []types.StorySummary `json:"stories"`
}

// StoryListCache keeps the most recent story list for one credential and
// version. A lookup for a different scope is a miss.
type StoryListCache struct {
	store storage.KVStore
	opts  options
	mu    sync.Mutex
}

// NewStoryListCache wraps store.
func NewStoryListCache(store storage.KVStore, opts ...Option) *StoryListCache {
	return &StoryListCache{store: store, opts: buildOptions(opts)}
}

// Get returns the cached list and when it was fetched.
func (c *StoryListCache) Get(ctx context.Context, token string, version types.Version) ([]types.StorySummary, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.store.Get(ctx, StoryListKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.opts.logger.Warn("story list cache read failed", "error", err)
		}
		return nil, time.Time{}, false
	}

	var doc storyListDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.opts.logger.Warn("failed to parse story list cache", "error", err)
		return nil, time.Time{}, false
	}
	if doc.Stories == nil || doc.Scope != scope(token, version) {
		return nil, time.Time{}, false
	}
	if c.opts.now().Sub(doc.Timestamp) >= c.opts.ttl {
		return nil, time.Time{}, false
	}
	return doc.Stories, doc.Timestamp, true
}

// Set replaces the cached list, returning the timestamp it was stamped with.
func (c *StoryListCache) Set(ctx context.Context, token string, version types.Version, stories []types.StorySummary) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stories == nil {
		stories = []types.StorySummary{}
	}
	doc := storyListDocument{
		Scope:     scope(token, version),
		Timestamp: c.opts.now(),
		Stories:   stories,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return time.Time{}, fmt.Errorf("cache: failed to encode story list: %w", err)
	}
	if err := c.store.Set(ctx, StoryListKey, raw); err != nil {
		return time.Time{}, fmt.Errorf("cache: failed to write story list: %w", err)
	}
	return doc.Timestamp, nil
}

// Invalidate drops the cached list.
func (c *StoryListCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Remove(ctx, StoryListKey); err != nil {
		return fmt.Errorf("cache: failed to remove story list: %w", err)
	}
	return nil
}

func scope(token string, version types.Version) string {
	return token + "::" + string(version)
}
