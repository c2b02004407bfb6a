// Package server provides HTTP server initialization and lifecycle management
// for the relations inspector backend.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrypster/storyblok-devtools/internal/cache"
	"github.com/scrypster/storyblok-devtools/internal/config"
	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/storyblok"
	"github.com/scrypster/storyblok-devtools/web/handlers"
)

// Deps are the components the HTTP surface is built on.
type Deps struct {
	Analyzer  *engine.Analyzer
	Stories   handlers.StoryService
	StoryList *cache.StoryListCache
	Breaker   *storyblok.CircuitBreaker
	Logger    *slog.Logger

	// Origins are additional websocket origin hosts besides the server's own.
	Origins []string
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// methods routes a path by request method.
func methods(routes map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.Method]
		if !ok {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// NewHandler builds the complete HTTP handler: API routes behind auth, the
// websocket stream, metrics, rate limiting and security headers.
func NewHandler(cfg *config.Config, deps Deps, hub *handlers.WebSocketHub) http.Handler {
	api := handlers.NewAPIHandlers(deps.Analyzer, deps.Stories, deps.StoryList, cfg,
		handlers.WithHub(hub),
		handlers.WithCircuitBreaker(deps.Breaker),
		handlers.WithLogger(deps.Logger))

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/health", methods(map[string]http.HandlerFunc{http.MethodGet: api.Health}))
	apiMux.HandleFunc("/api/stories", methods(map[string]http.HandlerFunc{http.MethodGet: api.ListStories}))
	apiMux.HandleFunc("/api/locales", methods(map[string]http.HandlerFunc{http.MethodGet: api.ListLocales}))
	apiMux.HandleFunc("/api/subject", methods(map[string]http.HandlerFunc{http.MethodPut: api.PutSubject}))
	apiMux.HandleFunc("/api/relations", methods(map[string]http.HandlerFunc{http.MethodGet: api.GetRelations}))
	apiMux.HandleFunc("/api/relations/refresh", methods(map[string]http.HandlerFunc{http.MethodPost: api.Refresh}))
	apiMux.HandleFunc("/api/relations/export", methods(map[string]http.HandlerFunc{http.MethodGet: api.Export}))
	apiMux.HandleFunc("/api/relations/cache", methods(map[string]http.HandlerFunc{http.MethodDelete: api.ClearCache}))

	mux := http.NewServeMux()

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint; browsers pass the token as access_token
	mux.Handle("/ws", handlers.RequireAuth(hub, cfg))

	mux.Handle("/metrics", promhttp.Handler())

	// Rate limiting inside, security headers outermost
	rateLimiter := handlers.NewRateLimiter(10.0, 20)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	return securityHeadersMiddleware(handler)
}

// Start listens on the configured address and serves until ctx is done.
// It returns the actual address being listened on (useful with port 0) and
// the hub carrying analyzer state to websocket clients.
func Start(ctx context.Context, cfg *config.Config, deps Deps) (string, *handlers.WebSocketHub, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	origins := []string{actualAddr, addr}
	if _, port, err := net.SplitHostPort(actualAddr); err == nil {
		origins = append(origins, "localhost:"+port, "127.0.0.1:"+port)
	}
	origins = append(origins, deps.Origins...)
	hub := handlers.NewWebSocketHub(logger.With("component", "ws"), origins...)
	go hub.Run()
	unsubscribe := deps.Analyzer.Subscribe(hub.BroadcastState)

	// Create server with security timeouts. Analyses may run long, so the
	// write timeout is generous.
	server := &http.Server{
		Handler:      NewHandler(cfg, deps, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		unsubscribe()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown error", "error", err)
		}
		hub.Stop()
	}()

	logger.Info("server listening", "addr", actualAddr)
	return actualAddr, hub, nil
}
