// Package cache layers time-to-live semantics over a storage.KVStore.
//
// Both caches keep a single JSON document under a fixed key, so one Clear
// wipes everything the cache owns without touching other keys in the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/storage"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

const (
	// RelationsKey is the store key holding every relations record.
	RelationsKey = "storyblokDevTools::relations"

	// DefaultTTL is how long a cached analysis stays fresh.
	DefaultTTL = 24 * time.Hour
)

// Record is one cached analysis.
type Record struct {
	Inbound          []types.RelationEntry `json:"inbound"`
	Outbound         []types.RelationEntry `json:"outbound"`
	AnalyzedStories  int                   `json:"analyzedStories"`
	DatasetSize      int                   `json:"datasetSize"`
	DatasetFetchedAt *time.Time            `json:"datasetFetchedAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// Option configures a cache.
type Option func(*options)

type options struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock injects the time source; tests use it to step past the TTL.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for recoverable store problems.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RelationsCache stores analyses keyed by credential, version and subject.
// Read-modify-write cycles are serialized by an internal mutex.
type RelationsCache struct {
	store storage.KVStore
	opts  options
	mu    sync.Mutex
}

// NewRelationsCache wraps store.
func NewRelationsCache(store storage.KVStore, opts ...Option) *RelationsCache {
	return &RelationsCache{store: store, opts: buildOptions(opts)}
}

// RecordKey builds the per-record key inside the relations document.
func RecordKey(token string, version types.Version, subjectUUID string) string {
	return token + "::" + string(version) + "::" + subjectUUID
}

// TTL reports the configured freshness window.
func (c *RelationsCache) TTL() time.Duration {
	return c.opts.ttl
}

// Get returns the record for the tuple. An expired record is evicted and
// reported as absent.
func (c *RelationsCache) Get(ctx context.Context, token string, version types.Version, subjectUUID string) (Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		return Record{}, false, err
	}

	key := RecordKey(token, version, subjectUUID)
	rec, ok := records[key]
	if !ok {
		return Record{}, false, nil
	}
	if c.expired(rec) {
		delete(records, key)
		if err := c.save(ctx, records); err != nil {
			return Record{}, false, err
		}
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Set stores rec under the tuple, stamping UpdatedAt, and sweeps every
// other expired record.
func (c *RelationsCache) Set(ctx context.Context, token string, version types.Version, subjectUUID string, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		// An unreadable document is replaced rather than blocking writes.
		c.opts.logger.Warn("relations cache unreadable, rewriting", "error", err)
		records = map[string]Record{}
	}

	for k, r := range records {
		if c.expired(r) {
			delete(records, k)
		}
	}

	rec.UpdatedAt = c.opts.now()
	records[RecordKey(token, version, subjectUUID)] = rec
	return c.save(ctx, records)
}

// Clear removes every relations record.
func (c *RelationsCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Remove(ctx, RelationsKey); err != nil {
		return fmt.Errorf("cache: failed to clear relations: %w", err)
	}
	return nil
}

func (c *RelationsCache) expired(rec Record) bool {
	return c.opts.now().Sub(rec.UpdatedAt) > c.opts.ttl
}

// load returns the decoded document. A missing or malformed document is an
// empty map.
func (c *RelationsCache) load(ctx context.Context) (map[string]Record, error) {
	raw, err := c.store.Get(ctx, RelationsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: failed to read relations: %w", err)
	}

	records := map[string]Record{}
	if err := json.Unmarshal(raw, &records); err != nil {
		c.opts.logger.Warn("discarding malformed relations cache", "error", err)
		return map[string]Record{}, nil
	}
	if records == nil {
		records = map[string]Record{}
	}
	return records, nil
}

func (c *RelationsCache) save(ctx context.Context, records map[string]Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("cache: failed to encode relations: %w", err)
	}
	if err := c.store.Set(ctx, RelationsKey, raw); err != nil {
		return fmt.Errorf("cache: failed to write relations: %w", err)
	}
	return nil
}
