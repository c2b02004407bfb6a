package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/cache"
	"github.com/scrypster/storyblok-devtools/internal/config"
	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/storyblok"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// TokenHeader overrides the configured access token for one request.
const TokenHeader = "X-Storyblok-Token"

// StoryService is the subset of the CDN client the handlers use.
type StoryService interface {
	FetchStory(ctx context.Context, token string, version types.Version, slug, lang string) (*types.Story, error)
	ListStorySummaries(ctx context.Context, token string, version types.Version) ([]types.StorySummary, error)
	FetchLocales(ctx context.Context, token string) ([]string, error)
}

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	analyzer  *engine.Analyzer
	stories   StoryService
	storyList *cache.StoryListCache
	config    *config.Config
	logger    *slog.Logger
	hub       *WebSocketHub
	breaker   *storyblok.CircuitBreaker

	// generation numbers each story snapshot handed to the analyzer.
	generation atomic.Uint64
}

// Option configures APIHandlers.
type Option func(*APIHandlers)

// WithHub reports the hub's client count in health responses.
func WithHub(hub *WebSocketHub) Option {
	return func(h *APIHandlers) { h.hub = hub }
}

// WithCircuitBreaker reports the CDN breaker state in health responses.
func WithCircuitBreaker(cb *storyblok.CircuitBreaker) Option {
	return func(h *APIHandlers) { h.breaker = cb }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *APIHandlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(analyzer *engine.Analyzer, stories StoryService, storyList *cache.StoryListCache, cfg *config.Config, opts ...Option) *APIHandlers {
	h := &APIHandlers{
		analyzer:  analyzer,
		stories:   stories,
		storyList: storyList,
		config:    cfg,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /api/health.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	st := h.analyzer.State()
	token, _ := h.credentials(r)
	resp := HealthResponse{
		Status:      "ok",
		Time:        time.Now().UTC(),
		Phase:       st.Phase,
		TokenSet:    token != "",
		SubjectUUID: st.SubjectUUID,
	}
	if h.breaker != nil {
		resp.CDNCircuit = h.breaker.State()
	}
	if h.hub != nil {
		resp.WSClients = h.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, resp)
}

// credentials resolves the token and version for r: the TokenHeader and
// the "version" query parameter win over configuration.
func (h *APIHandlers) credentials(r *http.Request) (string, types.Version) {
	token := strings.TrimSpace(r.Header.Get(TokenHeader))
	if token == "" {
		token = h.config.Storyblok.Token
	}
	version := types.ParseVersion(h.config.Storyblok.Version)
	if v := r.URL.Query().Get("version"); v != "" {
		version = types.ParseVersion(v)
	}
	return token, version
}

// syncCredentials hands r's credentials to the analyzer when they differ
// from the ones it holds.
func (h *APIHandlers) syncCredentials(r *http.Request) (string, types.Version) {
	token, version := h.credentials(r)
	curToken, curVersion := h.analyzer.Credentials()
	if token != curToken || version != curVersion {
		h.analyzer.SetCredentials(token, version)
	}
	return token, version
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing more can be reported.
		slog.Default().Warn("failed to encode JSON response", "error", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}

// statusFor maps a CDN or analysis error to an HTTP status.
func statusFor(err error) int {
	var netErr *storyblok.NetworkError
	switch {
	case errors.Is(err, engine.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, storyblok.ErrStoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, storyblok.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &netErr):
		if netErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		if netErr.StatusCode == http.StatusUnauthorized || netErr.StatusCode == http.StatusForbidden {
			return netErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseBool(s string, defaultValue bool) bool {
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}
	return v
}
