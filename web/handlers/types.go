package handlers

import (
	"time"

	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/relations"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is the response format for GET /api/health.
type HealthResponse struct {
	Status      string       `json:"status"`
	Time        time.Time    `json:"time"`
	Phase       engine.Phase `json:"phase"`
	TokenSet    bool         `json:"tokenSet"`
	CDNCircuit  string       `json:"cdnCircuit,omitempty"`
	WSClients   int          `json:"wsClients"`
	SubjectUUID string       `json:"subjectUuid,omitempty"`
}

// StoriesResponse is the response format for GET /api/stories.
type StoriesResponse struct {
	Stories   []types.StorySummary `json:"stories"`
	FetchedAt time.Time            `json:"fetchedAt"`
	FromCache bool                 `json:"fromCache"`
}

// LocalesResponse is the response format for GET /api/locales.
type LocalesResponse struct {
	Locales []string `json:"locales"`
}

// SubjectRequest is the body of PUT /api/subject.
type SubjectRequest struct {
	Slug     string `json:"slug"`
	Language string `json:"language"`
}

// RelationSummary holds the per-direction counts of the relations view.
// Story and occurrence counts cover the unfiltered lists; TotalMatches
// counts occurrences left visible by the filter.
type RelationSummary struct {
	InboundStories      int `json:"inboundStories"`
	OutboundStories     int `json:"outboundStories"`
	InboundOccurrences  int `json:"inboundOccurrences"`
	OutboundOccurrences int `json:"outboundOccurrences"`
	TotalMatches        int `json:"totalMatches"`
}

// RelationsResponse is the filtered relations view.
type RelationsResponse struct {
	SubjectUUID      string                `json:"subjectUuid"`
	StoryName        string                `json:"storyName,omitempty"`
	StorySlug        string                `json:"storySlug,omitempty"`
	Phase            engine.Phase          `json:"phase"`
	Loading          bool                  `json:"loading"`
	Error            string                `json:"error"`
	LastUpdated      *time.Time            `json:"lastUpdated"`
	DatasetSize      int                   `json:"datasetSize"`
	AnalyzedStories  int                   `json:"analyzedStories"`
	DatasetFetchedAt *time.Time            `json:"datasetFetchedAt"`
	FromCache        bool                  `json:"fromCache"`
	Inbound          []types.RelationEntry `json:"inbound"`
	Outbound         []types.RelationEntry `json:"outbound"`
	Summary          RelationSummary       `json:"summary"`
	Filters          relations.Filter      `json:"filters"`
}

func newRelationsResponse(st engine.State, subject *types.Story, f relations.Filter) RelationsResponse {
	in, out := f.Apply(st.Inbound, st.Outbound)
	resp := RelationsResponse{
		SubjectUUID:      st.SubjectUUID,
		Phase:            st.Phase,
		Loading:          st.Loading,
		Error:            st.Error,
		LastUpdated:      st.LastUpdated,
		DatasetSize:      st.DatasetSize,
		AnalyzedStories:  st.AnalyzedStories,
		DatasetFetchedAt: st.DatasetFetchedAt,
		FromCache:        st.FromCache,
		Inbound:          in,
		Outbound:         out,
		Summary: RelationSummary{
			InboundStories:      len(st.Inbound),
			OutboundStories:     len(st.Outbound),
			InboundOccurrences:  types.CountOccurrences(st.Inbound),
			OutboundOccurrences: types.CountOccurrences(st.Outbound),
			TotalMatches:        types.CountOccurrences(in) + types.CountOccurrences(out),
		},
		Filters: f,
	}
	if subject != nil {
		resp.StoryName = subject.Name
		resp.StorySlug = subject.DisplaySlug()
	}
	return resp
}
