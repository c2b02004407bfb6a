package types

import "time"

// Occurrence is one location inside a content tree where a story
// identifier was found.
type Occurrence struct {
	// Path is the dotted/bracketed location of the leaf, e.g.
	// "content.body[2].link.id". Unique within one tree scan.
	Path string `json:"path"`

	// FieldKey is the immediate object key holding the value, nil for
	// array elements.
	FieldKey *string `json:"fieldKey"`

	// Snippet is the matched value, truncated for display.
	Snippet string `json:"snippet"`

	// Component is the "component" tag of the enclosing object, if any.
	Component *string `json:"component"`
}

// RelationEntry is one related story together with every occurrence
// linking it to the subject story. Occurrences is never empty.
type RelationEntry struct {
	StoryUUID   string       `json:"storyUuid"`
	StoryName   string       `json:"storyName"`
	StorySlug   string       `json:"storySlug"`
	Occurrences []Occurrence `json:"occurrences"`
}

// RelationResult is the outcome of analyzing one subject story against a
// dataset.
type RelationResult struct {
	Inbound          []RelationEntry `json:"inbound"`
	Outbound         []RelationEntry `json:"outbound"`
	AnalyzedStories  int             `json:"analyzedStories"`
	DatasetSize      int             `json:"datasetSize"`
	DatasetFetchedAt time.Time       `json:"datasetFetchedAt"`
	AnalyzedAt       time.Time       `json:"analyzedAt"`
}

// CountOccurrences sums the occurrences across entries.
func CountOccurrences(entries []RelationEntry) int {
	total := 0
	for _, e := range entries {
		total += len(e.Occurrences)
	}
	return total
}
