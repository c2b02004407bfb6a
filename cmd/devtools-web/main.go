package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/app"
	"github.com/scrypster/storyblok-devtools/internal/config"
	"github.com/scrypster/storyblok-devtools/internal/logging"
	"github.com/scrypster/storyblok-devtools/internal/notify"
	"github.com/scrypster/storyblok-devtools/internal/server"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", os.Getenv("SBDT_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.Logging)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, hub, err := server.Start(ctx, cfg, server.Deps{
		Analyzer:  a.Analyzer,
		Stories:   a.Client,
		StoryList: a.StoryList,
		Breaker:   a.Client.Breaker(),
		Logger:    logger.With("component", "server"),
	})
	if err != nil {
		return err
	}
	logger.Info("relations inspector running", "url", "http://"+addr)

	// Pick up analyses and cache clears done by the CLI
	watcher := notify.NewEventWatcher(cfg.Storage.DataPath,
		server.EventHandler(ctx, a.Analyzer, hub, logger.With("component", "events")),
		logger.With("component", "notify"))
	if err := watcher.Start(); err != nil {
		logger.Warn("cache events unavailable", "error", err)
	} else {
		defer watcher.Stop()
	}

	<-ctx.Done()
	logger.Info("shutting down gracefully")
	time.Sleep(500 * time.Millisecond) // Give time for connections to close
	return nil
}
