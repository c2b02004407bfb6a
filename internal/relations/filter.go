package relations

import (
	"strings"

	"github.com/scrypster/storyblok-devtools/pkg/types"
)

// Filter narrows the displayed relations. The zero value hides both
// directions; use DefaultFilter for the initial view.
type Filter struct {
	Search   string `json:"search"`
	Inbound  bool   `json:"inbound"`
	Outbound bool   `json:"outbound"`
}

// DefaultFilter shows both directions without a search query.
func DefaultFilter() Filter {
	return Filter{Inbound: true, Outbound: true}
}

// Apply returns the entries visible under f.
func (f Filter) Apply(inbound, outbound []types.RelationEntry) (in, out []types.RelationEntry) {
	in, out = []types.RelationEntry{}, []types.RelationEntry{}
	query := normalizeQuery(f.Search)
	if f.Inbound {
		in = filterEntries(inbound, query)
	}
	if f.Outbound {
		out = filterEntries(outbound, query)
	}
	return in, out
}

// Matches reports whether entry matches a search query. The query is
// compared case-insensitively against the story name, slug and UUID and
// against every occurrence's path and field key. An empty query matches.
func Matches(entry types.RelationEntry, query string) bool {
	q := normalizeQuery(query)
	if q == "" {
		return true
	}
	return matches(entry, q)
}

func filterEntries(entries []types.RelationEntry, query string) []types.RelationEntry {
	if query == "" {
		return append([]types.RelationEntry{}, entries...)
	}
	out := []types.RelationEntry{}
	for _, e := range entries {
		if matches(e, query) {
			out = append(out, e)
		}
	}
	return out
}

func matches(entry types.RelationEntry, query string) bool {
	parts := []string{entry.StoryName, entry.StorySlug, entry.StoryUUID}
	for _, occ := range entry.Occurrences {
		key := ""
		if occ.FieldKey != nil {
			key = *occ.FieldKey
		}
		parts = append(parts, occ.Path+" "+key)
	}
	return strings.Contains(strings.ToLower(strings.Join(parts, " ")), query)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
