// Package export renders the relations view as a downloadable JSON document.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/storyblok-devtools/internal/relations"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// ErrNothingToExport is returned when the filtered view has no entries.
var ErrNothingToExport = errors.New("export: no relations to export")

// StoryRef identifies the analyzed story. Unknown fields are null.
type StoryRef struct {
	UUID *string `json:"uuid"`
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

// Summary holds the counts shown above the relation lists.
type Summary struct {
	InboundStories      int `json:"inboundStories"`
	OutboundStories     int `json:"outboundStories"`
	InboundOccurrences  int `json:"inboundOccurrences"`
	OutboundOccurrences int `json:"outboundOccurrences"`
	AnalyzedStories     int `json:"analyzedStories"`
	DatasetSize         int `json:"datasetSize"`
}

// Document is the exported payload.
type Document struct {
	GeneratedAt time.Time             `json:"generatedAt"`
	Story       StoryRef              `json:"story"`
	Summary     Summary               `json:"summary"`
	Filters     relations.Filter      `json:"filters"`
	Inbound     []types.RelationEntry `json:"inbound"`
	Outbound    []types.RelationEntry `json:"outbound"`
}

// Input is everything the export needs from the current view.
type Input struct {
	Story           *types.Story
	Inbound         []types.RelationEntry
	Outbound        []types.RelationEntry
	AnalyzedStories int
	DatasetSize     int
	Filter          relations.Filter
	Now             time.Time
}

// Build assembles the document. Export is refused when the filter leaves
// nothing visible; the document itself carries the unfiltered lists and
// the filter that was active.
func Build(in Input) (*Document, error) {
	visibleIn, visibleOut := in.Filter.Apply(in.Inbound, in.Outbound)
	if len(visibleIn) == 0 && len(visibleOut) == 0 {
		return nil, ErrNothingToExport
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	inbound := orEmpty(in.Inbound)
	outbound := orEmpty(in.Outbound)

	return &Document{
		GeneratedAt: now.UTC(),
		Story:       storyRef(in.Story),
		Summary: Summary{
			InboundStories:      len(inbound),
			OutboundStories:     len(outbound),
			InboundOccurrences:  types.CountOccurrences(inbound),
			OutboundOccurrences: types.CountOccurrences(outbound),
			AnalyzedStories:     in.AnalyzedStories,
			DatasetSize:         in.DatasetSize,
		},
		Filters:  in.Filter,
		Inbound:  inbound,
		Outbound: outbound,
	}, nil
}

// Marshal encodes doc as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: failed to encode document: %w", err)
	}
	return data, nil
}

// FileName returns the download name for story's export.
func FileName(story *types.Story) string {
	slug := "story"
	if story != nil && strings.TrimSpace(story.Slug) != "" {
		slug = strings.ReplaceAll(strings.TrimSpace(story.Slug), "/", "-")
	}
	return "story-relations-" + slug + ".json"
}

func storyRef(s *types.Story) StoryRef {
	if s == nil {
		return StoryRef{}
	}
	return StoryRef{
		UUID: nonEmpty(s.UUID),
		Name: nonEmpty(s.Name),
		Slug: nonEmpty(s.DisplaySlug()),
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmpty(entries []types.RelationEntry) []types.RelationEntry {
	if entries == nil {
		return []types.RelationEntry{}
	}
	return entries
}
