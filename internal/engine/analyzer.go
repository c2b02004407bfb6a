// Package engine orchestrates relation analyses for the inspected story.
//
// An Analyzer owns the current subject, the fetched dataset and the
// published State. At most one analysis is in flight: starting another one
// cancels its predecessor, and a superseded analysis never writes state.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/cache"
	"github.com/scrypster/storyblok-devtools/internal/relations"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// DatasetFetcher retrieves every non-folder story visible to a token.
// It must return a nil slice and the context error when ctx is cancelled.
type DatasetFetcher interface {
	FetchAllStories(ctx context.Context, token string, version types.Version) ([]types.Story, error)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithWipeOnSubjectChange controls whether switching to a different story
// clears the whole relations cache. Enabled by default.
func WithWipeOnSubjectChange(wipe bool) Option {
	return func(a *Analyzer) {
		a.wipeOnSubjectChange = wipe
	}
}

// WithCredentials sets the initial token and version.
func WithCredentials(token string, version types.Version) Option {
	return func(a *Analyzer) {
		a.token = strings.TrimSpace(token)
		a.version = version
	}
}

type dataset struct {
	stories   []types.Story
	token     string
	version   types.Version
	fetchedAt time.Time
}

// analysisKey identifies what an analysis was computed from. The
// generation stands in for the identity of the subject's content.
type analysisKey struct {
	uuid       string
	generation uint64
	token      string
	version    types.Version
}

// Analyzer runs relation analyses. All methods are safe for concurrent use.
type Analyzer struct {
	fetcher DatasetFetcher
	cache   *cache.RelationsCache
	logger  *slog.Logger
	now     func() time.Time

	wipeOnSubjectChange bool

	mu         sync.Mutex
	closed     bool
	token      string
	version    types.Version
	subject    *types.Story
	generation uint64
	data       *dataset
	last       *analysisKey
	state      State

	runSeq uint64
	cancel context.CancelFunc

	listeners  map[int]func(State)
	listenerID int
}

// NewAnalyzer creates an Analyzer. A nil cache disables caching.
func NewAnalyzer(fetcher DatasetFetcher, relationsCache *cache.RelationsCache, opts ...Option) *Analyzer {
	a := &Analyzer{
		fetcher:             fetcher,
		cache:               relationsCache,
		logger:              slog.New(slog.DiscardHandler),
		now:                 time.Now,
		wipeOnSubjectChange: true,
		version:             types.VersionDraft,
		state:               emptyState(""),
		listeners:           map[int]func(State){},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetCredentials replaces the token and version used by later analyses.
// It does not start an analysis; call Refresh to apply the change.
func (a *Analyzer) SetCredentials(token string, version types.Version) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.token = strings.TrimSpace(token)
	if version == "" {
		version = types.VersionDraft
	}
	a.version = version
	a.logger.Info("credentials updated", "token_present", a.token != "", "version", string(version))
}

// Credentials returns the token and version currently in use.
func (a *Analyzer) Credentials() (string, types.Version) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token, a.version
}

// Subject returns a copy of the current subject story, or nil.
func (a *Analyzer) Subject() *types.Story {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subject == nil {
		return nil
	}
	s := *a.subject
	return &s
}

// SetSubject makes story the inspected subject and analyzes it. The caller
// bumps generation whenever it knows the story's content changed; an
// unchanged generation for the same story allows the analysis to be skipped.
//
// Switching to a story with a different uuid cancels the in-flight
// analysis, resets the state and, unless disabled, clears the cache.
func (a *Analyzer) SetSubject(ctx context.Context, story types.Story, generation uint64) (State, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return State{}, ErrClosed
	}

	story.UUID = strings.TrimSpace(story.UUID)
	prev := ""
	if a.subject != nil {
		prev = a.subject.UUID
	}
	if prev != "" && story.UUID != "" && story.UUID != prev {
		a.cancelRunLocked()
		if a.wipeOnSubjectChange && a.cache != nil {
			if err := a.cache.Clear(ctx); err != nil {
				a.logger.Warn("failed to clear relations cache", "error", err)
			}
		}
		a.data = nil
		a.last = nil
		a.state = emptyState(story.UUID)
		a.logger.Info("subject changed", "from", prev, "to", story.UUID)
		a.publishLocked()
	}

	a.subject = &story
	a.generation = generation
	a.state.SubjectUUID = story.UUID
	a.mu.Unlock()

	return a.analyze(ctx, false)
}

// Refresh re-runs the analysis for the current subject. With force set the
// cache and the in-memory dataset are bypassed.
func (a *Analyzer) Refresh(ctx context.Context, force bool) (State, error) {
	return a.analyze(ctx, force)
}

// State returns the latest snapshot.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Subscribe registers fn to receive every published state. fn is called
// with the analyzer's lock held and must not block or call back into the
// Analyzer.
func (a *Analyzer) Subscribe(fn func(State)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.listenerID
	a.listenerID++
	a.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// ClearCache removes every cached analysis.
func (a *Analyzer) ClearCache(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cache == nil {
		return nil
	}
	return a.cache.Clear(ctx)
}

// Close cancels any in-flight analysis and drops all listeners.
func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.cancelRunLocked()
	a.listeners = map[int]func(State){}
}

func (a *Analyzer) analyze(ctx context.Context, force bool) (State, error) {
	started := a.now()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return State{}, ErrClosed
	}
	if a.subject == nil || a.subject.UUID == "" {
		st := a.failLocked(ErrMissingSubject)
		a.mu.Unlock()
		return st, ErrMissingSubject
	}
	if a.token == "" {
		st := a.failLocked(ErrMissingToken)
		a.mu.Unlock()
		return st, ErrMissingToken
	}

	subject := *a.subject
	key := analysisKey{uuid: subject.UUID, generation: a.generation, token: a.token, version: a.version}

	prevPhase := a.state.Phase
	if !force && a.cache != nil {
		a.state.Phase = PhaseCheckingCache
		a.publishLocked()
		rec, ok, err := a.cache.Get(ctx, key.token, key.version, key.uuid)
		if err != nil {
			a.logger.Warn("relations cache lookup failed", "error", err)
		}
		if ok {
			// A fresh record supersedes whatever was still running.
			a.cancelRunLocked()
			a.applyRecordLocked(rec)
			a.last = &key
			a.publishLocked()
			st := a.state
			a.mu.Unlock()
			analysesTotal.WithLabelValues(outcomeCacheHit).Inc()
			return st, nil
		}
	}

	reusable := a.data != nil && a.data.token == key.token && a.data.version == key.version && len(a.data.stories) > 0
	if !force && reusable && a.last != nil && *a.last == key {
		if a.state.Phase != prevPhase {
			a.state.Phase = prevPhase
			a.publishLocked()
		}
		st := a.state
		a.mu.Unlock()
		analysesTotal.WithLabelValues(outcomeSkipped).Inc()
		return st, nil
	}

	a.cancelRunLocked()
	runCtx, cancel := context.WithCancel(ctx)
	a.runSeq++
	seq := a.runSeq
	a.cancel = cancel
	defer a.finishRun(seq, cancel)

	needFetch := force || !reusable
	var data *dataset
	if !needFetch {
		data = a.data
	}
	a.state.Loading = true
	a.state.Error = ""
	a.state.FromCache = false
	if needFetch {
		a.state.Phase = PhaseFetchingDataset
	} else {
		a.state.Phase = PhaseComputing
	}
	a.publishLocked()
	a.mu.Unlock()

	if needFetch {
		stories, err := a.fetcher.FetchAllStories(runCtx, key.token, key.version)

		a.mu.Lock()
		if ok, st := a.currentLocked(runCtx, seq, prevPhase); !ok {
			a.mu.Unlock()
			analysesTotal.WithLabelValues(outcomeCanceled).Inc()
			return st, context.Canceled
		}
		if err != nil {
			st := a.failLocked(err)
			a.mu.Unlock()
			analysesTotal.WithLabelValues(outcomeFailed).Inc()
			a.logger.Error("relations analysis failed", "subject", key.uuid, "error", err)
			return st, err
		}
		data = &dataset{stories: stories, token: key.token, version: key.version, fetchedAt: a.now()}
		a.data = data
		a.state.Phase = PhaseComputing
		a.state.DatasetFetchedAt = timePtr(data.fetchedAt)
		a.publishLocked()
		a.mu.Unlock()
		datasetSizeGauge.Set(float64(len(stories)))
	}

	outbound := relations.ComputeOutbound(subject.Content, subject.UUID, relations.Index(data.stories))
	inbound := relations.ComputeInbound(data.stories, subject.UUID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if ok, st := a.currentLocked(runCtx, seq, prevPhase); !ok {
		analysesTotal.WithLabelValues(outcomeCanceled).Inc()
		return st, context.Canceled
	}

	analyzedAt := a.now()
	a.state.Inbound = inbound
	a.state.Outbound = outbound
	a.state.Loading = false
	a.state.Error = ""
	a.state.Phase = PhaseDone
	a.state.LastUpdated = timePtr(analyzedAt)
	a.state.DatasetSize = len(data.stories)
	a.state.AnalyzedStories = len(data.stories)
	a.state.DatasetFetchedAt = timePtr(data.fetchedAt)
	a.last = &key

	if a.cache != nil {
		rec := cache.Record{
			Inbound:          inbound,
			Outbound:         outbound,
			AnalyzedStories:  len(data.stories),
			DatasetSize:      len(data.stories),
			DatasetFetchedAt: timePtr(data.fetchedAt),
		}
		if err := a.cache.Set(ctx, key.token, key.version, key.uuid, rec); err != nil {
			a.logger.Warn("failed to persist relations", "error", err)
		}
	}
	a.publishLocked()

	analysesTotal.WithLabelValues(outcomeComputed).Inc()
	analysisDuration.Observe(a.now().Sub(started).Seconds())
	a.logger.Info("relations analyzed",
		"subject", key.uuid,
		"inbound", len(inbound),
		"outbound", len(outbound),
		"dataset", len(data.stories))
	return a.state, nil
}

// currentLocked reports whether run seq may still write state. When the run
// was cancelled by its own caller and nothing replaced it, the loading flag
// is cleared so the state does not stay busy forever.
func (a *Analyzer) currentLocked(runCtx context.Context, seq uint64, prevPhase Phase) (bool, State) {
	if seq != a.runSeq {
		return false, a.state
	}
	if runCtx.Err() != nil {
		a.state.Loading = false
		a.state.Phase = prevPhase
		if a.state.Phase == "" {
			a.state.Phase = PhaseIdle
		}
		a.publishLocked()
		return false, a.state
	}
	return true, a.state
}

func (a *Analyzer) finishRun(seq uint64, cancel context.CancelFunc) {
	a.mu.Lock()
	if a.runSeq == seq {
		a.cancel = nil
	}
	a.mu.Unlock()
	cancel()
}

// cancelRunLocked cancels the in-flight run, if any, and invalidates its
// sequence number so it can no longer write state.
func (a *Analyzer) cancelRunLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.runSeq++
}

func (a *Analyzer) failLocked(err error) State {
	a.state.Inbound = []types.RelationEntry{}
	a.state.Outbound = []types.RelationEntry{}
	a.state.Loading = false
	a.state.Error = err.Error()
	a.state.Phase = PhaseFailed
	a.state.FromCache = false
	a.publishLocked()
	return a.state
}

func (a *Analyzer) applyRecordLocked(rec cache.Record) {
	analyzed := rec.AnalyzedStories
	if analyzed == 0 {
		analyzed = rec.DatasetSize
	}
	fetchedAt := rec.DatasetFetchedAt
	if fetchedAt == nil {
		fetchedAt = timePtr(rec.UpdatedAt)
	}

	a.state.Inbound = nonNil(rec.Inbound)
	a.state.Outbound = nonNil(rec.Outbound)
	a.state.AnalyzedStories = analyzed
	a.state.DatasetSize = rec.DatasetSize
	a.state.LastUpdated = timePtr(rec.UpdatedAt)
	a.state.DatasetFetchedAt = fetchedAt
	a.state.Error = ""
	a.state.Loading = false
	a.state.Phase = PhaseDone
	a.state.FromCache = true
}

func (a *Analyzer) publishLocked() {
	st := a.state
	for _, fn := range a.listeners {
		fn(st)
	}
}

func nonNil(entries []types.RelationEntry) []types.RelationEntry {
	if entries == nil {
		return []types.RelationEntry{}
	}
	return entries
}
