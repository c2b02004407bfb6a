// Package relations discovers which stories reference a subject story and
// which stories the subject references.
package relations

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/scrypster/storyblok-devtools/internal/content"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

const (
	snippetLimit  = 80
	snippetKeep   = 77
	snippetSuffix = "..."
)

// Index maps story UUIDs to their stories. Later duplicates win.
func Index(stories []types.Story) map[string]*types.Story {
	idx := make(map[string]*types.Story, len(stories))
	for i := range stories {
		idx[stories[i].UUID] = &stories[i]
	}
	return idx
}

// ComputeOutbound lists the stories referenced from subjectContent.
//
// Every string leaf that is an identifier produces an occurrence unless it
// is the subject's own UUID or is absent from byUUID. Occurrences are
// grouped per referenced story and the groups are sorted by display name.
func ComputeOutbound(subjectContent any, subjectUUID string, byUUID map[string]*types.Story) []types.RelationEntry {
	if subjectContent == nil || subjectUUID == "" {
		return []types.RelationEntry{}
	}

	var order []string
	grouped := make(map[string][]types.Occurrence)

	content.Traverse(subjectContent, func(leaf content.Leaf) {
		id := strings.TrimSpace(leaf.Value)
		if !content.IsIdentifier(id) || id == subjectUUID {
			return
		}
		if _, known := byUUID[id]; !known {
			return
		}
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], newOccurrence(leaf, id))
	})

	entries := make([]types.RelationEntry, 0, len(order))
	for _, id := range order {
		story := byUUID[id]
		entries = append(entries, types.RelationEntry{
			StoryUUID:   id,
			StoryName:   story.DisplayName(),
			StorySlug:   story.DisplaySlug(),
			Occurrences: grouped[id],
		})
	}
	SortEntries(entries)
	return entries
}

// ComputeInbound lists the stories in dataset whose content contains the
// subject UUID as an exact (trimmed) leaf value. Folders and the subject
// itself are skipped; stories without a match are omitted.
func ComputeInbound(dataset []types.Story, subjectUUID string) []types.RelationEntry {
	entries := []types.RelationEntry{}
	if len(dataset) == 0 || subjectUUID == "" {
		return entries
	}

	for i := range dataset {
		story := &dataset[i]
		if story.IsFolder || story.UUID == subjectUUID || story.Content == nil {
			continue
		}

		var occurrences []types.Occurrence
		content.Traverse(story.Content, func(leaf content.Leaf) {
			if strings.TrimSpace(leaf.Value) != subjectUUID {
				return
			}
			occurrences = append(occurrences, newOccurrence(leaf, leaf.Value))
		})
		if len(occurrences) == 0 {
			continue
		}

		entries = append(entries, types.RelationEntry{
			StoryUUID:   story.UUID,
			StoryName:   story.DisplayName(),
			StorySlug:   story.DisplaySlug(),
			Occurrences: occurrences,
		})
	}
	SortEntries(entries)
	return entries
}

// SortEntries orders entries by story name, ignoring case and diacritics.
// Entries with equal names keep their relative order.
func SortEntries(entries []types.RelationEntry) {
	c := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(entries, func(i, j int) bool {
		return c.CompareString(entries[i].StoryName, entries[j].StoryName) < 0
	})
}

// Snippet truncates long values for display.
func Snippet(value string) string {
	runes := []rune(value)
	if len(runes) <= snippetLimit {
		return value
	}
	return string(runes[:snippetKeep]) + snippetSuffix
}

func newOccurrence(leaf content.Leaf, value string) types.Occurrence {
	occ := types.Occurrence{
		Path:      leaf.Path,
		Snippet:   Snippet(value),
		Component: componentOf(leaf.Parent),
	}
	if leaf.HasKey {
		key := leaf.Key
		occ.FieldKey = &key
	}
	return occ
}

// componentOf returns the "component" tag of the object holding a leaf.
func componentOf(parent any) *string {
	var name string
	switch p := parent.(type) {
	case map[string]any:
		s, ok := p["component"].(string)
		if !ok {
			return nil
		}
		name = s
	case map[string]string:
		s, ok := p["component"]
		if !ok {
			return nil
		}
		name = s
	default:
		return nil
	}
	return &name
}
