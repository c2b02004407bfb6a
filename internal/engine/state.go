package engine

import (
	"time"

	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// Phase is the analyzer's position in its state machine.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseCheckingCache   Phase = "checking_cache"
	PhaseFetchingDataset Phase = "fetching_dataset"
	PhaseComputing       Phase = "computing"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
)

// State is a snapshot of the analyzer as shown to the presentation layer.
// Slices in a snapshot are never mutated after publication.
type State struct {
	SubjectUUID      string                `json:"subjectUuid"`
	Phase            Phase                 `json:"phase"`
	Inbound          []types.RelationEntry `json:"inbound"`
	Outbound         []types.RelationEntry `json:"outbound"`
	Loading          bool                  `json:"loading"`
	Error            string                `json:"error"`
	LastUpdated      *time.Time            `json:"lastUpdated"`
	DatasetSize      int                   `json:"datasetSize"`
	AnalyzedStories  int                   `json:"analyzedStories"`
	DatasetFetchedAt *time.Time            `json:"datasetFetchedAt"`
	FromCache        bool                  `json:"fromCache"`
}

func emptyState(subjectUUID string) State {
	return State{
		SubjectUUID: subjectUUID,
		Phase:       PhaseIdle,
		Inbound:     []types.RelationEntry{},
		Outbound:    []types.RelationEntry{},
	}
}

// HasResults reports whether either list has entries.
func (s State) HasResults() bool {
	return len(s.Inbound) > 0 || len(s.Outbound) > 0
}

func timePtr(t time.Time) *time.Time {
	return &t
}
