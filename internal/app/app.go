// Package app assembles the storage, CDN client, caches and analyzer from a
// loaded configuration. Both binaries start from here.
package app

import (
	"fmt"
	"log/slog"

	"github.com/scrypster/storyblok-devtools/internal/cache"
	"github.com/scrypster/storyblok-devtools/internal/config"
	"github.com/scrypster/storyblok-devtools/internal/connections"
	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/storage"
	"github.com/scrypster/storyblok-devtools/internal/storyblok"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     storage.KVStore
	Client    *storyblok.Client
	Relations *cache.RelationsCache
	StoryList *cache.StoryListCache
	Analyzer  *engine.Analyzer
}

// New validates cfg and builds the component graph. The caller owns the
// returned App and must Close it.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := connections.OpenStore(cfg.Storage, logger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("app: failed to open storage: %w", err)
	}

	client := storyblok.NewClient(
		storyblok.WithBaseURL(cfg.Storyblok.APIURL),
		storyblok.WithTimeout(cfg.Storyblok.Timeout),
		storyblok.WithRateLimit(cfg.Storyblok.RPS, cfg.Storyblok.Burst),
		storyblok.WithLogger(logger.With("component", "storyblok")),
	)

	relationsCache := cache.NewRelationsCache(store,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(logger.With("component", "cache")))
	storyList := cache.NewStoryListCache(store,
		cache.WithTTL(cfg.Cache.StoryListTTL),
		cache.WithLogger(logger.With("component", "cache")))

	analyzer := engine.NewAnalyzer(client, relationsCache,
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithWipeOnSubjectChange(cfg.Cache.WipeOnSubjectChange),
		engine.WithCredentials(cfg.Storyblok.Token, types.ParseVersion(cfg.Storyblok.Version)),
	)

	logger.Info("components ready",
		"storage", cfg.Storage.Engine,
		"api_url", cfg.Storyblok.APIURL,
		"version", cfg.Storyblok.Version,
		"token_present", cfg.Storyblok.Token != "")

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Client:    client,
		Relations: relationsCache,
		StoryList: storyList,
		Analyzer:  analyzer,
	}, nil
}

// Close stops the analyzer and releases storage.
func (a *App) Close() error {
	a.Analyzer.Close()
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("app: failed to close storage: %w", err)
	}
	return nil
}
