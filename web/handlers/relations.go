package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/export"
	"github.com/scrypster/storyblok-devtools/internal/relations"
)

// filterFromQuery reads q, inbound and outbound. Both directions are shown
// unless explicitly disabled.
func filterFromQuery(r *http.Request) relations.Filter {
	q := r.URL.Query()
	f := relations.DefaultFilter()
	f.Search = q.Get("q")
	f.Inbound = parseBool(q.Get("inbound"), true)
	f.Outbound = parseBool(q.Get("outbound"), true)
	return f
}

// GetRelations handles GET /api/relations.
// It returns the latest analysis state narrowed by the request's filter.
func (h *APIHandlers) GetRelations(w http.ResponseWriter, r *http.Request) {
	st := h.analyzer.State()
	respondJSON(w, http.StatusOK, newRelationsResponse(st, h.analyzer.Subject(), filterFromQuery(r)))
}

// Refresh handles POST /api/relations/refresh.
// Query parameters:
//   - force: bypass the cache and refetch the dataset (default true)
func (h *APIHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	h.syncCredentials(r)
	force := parseBool(r.URL.Query().Get("force"), true)

	st, err := h.analyzer.Refresh(r.Context(), force)
	f := filterFromQuery(r)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, newRelationsResponse(st, h.analyzer.Subject(), f))
	case engine.IsCanceled(err):
		// Superseded by a newer analysis; report where things stand.
		respondJSON(w, http.StatusAccepted, newRelationsResponse(h.analyzer.State(), h.analyzer.Subject(), f))
	default:
		h.logger.Warn("refresh failed", "error", err)
		respondError(w, statusFor(err), "Analysis failed", err)
	}
}

// Export handles GET /api/relations/export.
// The document is served as an attachment named after the subject's slug.
func (h *APIHandlers) Export(w http.ResponseWriter, r *http.Request) {
	st := h.analyzer.State()
	subject := h.analyzer.Subject()

	doc, err := export.Build(export.Input{
		Story:           subject,
		Inbound:         st.Inbound,
		Outbound:        st.Outbound,
		AnalyzedStories: st.AnalyzedStories,
		DatasetSize:     st.DatasetSize,
		Filter:          filterFromQuery(r),
		Now:             time.Now(),
	})
	if errors.Is(err, export.ErrNothingToExport) {
		respondError(w, http.StatusNotFound, "Nothing to export", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to build export", err)
		return
	}

	data, err := export.Marshal(doc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode export", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(subject)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ClearCache handles DELETE /api/relations/cache.
// It removes every cached analysis and the cached story list.
func (h *APIHandlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.analyzer.ClearCache(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear relations cache", err)
		return
	}
	if h.storyList != nil {
		if err := h.storyList.Invalidate(r.Context()); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to clear story list cache", err)
			return
		}
	}
	h.logger.Info("caches cleared")
	w.WriteHeader(http.StatusNoContent)
}
