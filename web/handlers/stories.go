package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/relations"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

const maxSubjectBody = 1 << 16

// ListStories handles GET /api/stories.
// The story list is served from cache unless force=true.
func (h *APIHandlers) ListStories(w http.ResponseWriter, r *http.Request) {
	token, version := h.credentials(r)
	if token == "" {
		respondError(w, http.StatusBadRequest, "No Storyblok access token configured", engine.ErrMissingToken)
		return
	}
	force := parseBool(r.URL.Query().Get("force"), false)

	if !force && h.storyList != nil {
		if stories, at, ok := h.storyList.Get(r.Context(), token, version); ok {
			respondJSON(w, http.StatusOK, StoriesResponse{Stories: stories, FetchedAt: at, FromCache: true})
			return
		}
	}

	stories, err := h.stories.ListStorySummaries(r.Context(), token, version)
	if err != nil {
		if h.storyList != nil {
			if ierr := h.storyList.Invalidate(r.Context()); ierr != nil {
				h.logger.Warn("failed to invalidate story list", "error", ierr)
			}
		}
		h.logger.Warn("failed to list stories", "error", err)
		respondError(w, statusFor(err), "Failed to load stories", err)
		return
	}

	at := time.Now().UTC()
	if h.storyList != nil {
		stamped, err := h.storyList.Set(r.Context(), token, version, stories)
		if err != nil {
			h.logger.Warn("failed to cache story list", "error", err)
		} else {
			at = stamped
		}
	}
	respondJSON(w, http.StatusOK, StoriesResponse{Stories: stories, FetchedAt: at})
}

// ListLocales handles GET /api/locales.
func (h *APIHandlers) ListLocales(w http.ResponseWriter, r *http.Request) {
	token, _ := h.credentials(r)
	if token == "" {
		respondJSON(w, http.StatusOK, LocalesResponse{Locales: []string{types.DefaultLocale}})
		return
	}
	locales, err := h.stories.FetchLocales(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "Locale lookup interrupted", err)
		return
	}
	respondJSON(w, http.StatusOK, LocalesResponse{Locales: locales})
}

// PutSubject handles PUT /api/subject.
// It loads the story by slug, makes it the analyzed subject and returns the
// resulting relations view. Every load counts as a new content snapshot.
func (h *APIHandlers) PutSubject(w http.ResponseWriter, r *http.Request) {
	var req SubjectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubjectBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Slug = strings.Trim(strings.TrimSpace(req.Slug), "/")
	if req.Slug == "" {
		respondError(w, http.StatusBadRequest, "slug is required", nil)
		return
	}

	token, version := h.syncCredentials(r)
	if token == "" {
		respondError(w, http.StatusBadRequest, "No Storyblok access token configured", engine.ErrMissingToken)
		return
	}

	story, err := h.stories.FetchStory(r.Context(), token, version, req.Slug, req.Language)
	if err != nil {
		h.logger.Warn("failed to load subject story", "slug", req.Slug, "error", err)
		respondError(w, statusFor(err), "Failed to load story", err)
		return
	}

	// The analysis outlives the request.
	ctx := context.WithoutCancel(r.Context())
	st, err := h.analyzer.SetSubject(ctx, *story, h.generation.Add(1))
	f := relations.DefaultFilter()
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, newRelationsResponse(st, story, f))
	case engine.IsCanceled(err):
		respondJSON(w, http.StatusAccepted, newRelationsResponse(h.analyzer.State(), story, f))
	default:
		respondError(w, statusFor(err), "Analysis failed", err)
	}
}
