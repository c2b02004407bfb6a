package types

import "strings"

// Version selects the Storyblok content delivery channel.
type Version string

const (
	VersionDraft     Version = "draft"
	VersionPublished Version = "published"
)

// ParseVersion maps a user-supplied channel name to a Version.
// Anything other than "published" (case-insensitive) resolves to draft,
// which is the channel the inspector reads by default.
func ParseVersion(s string) Version {
	if strings.EqualFold(strings.TrimSpace(s), string(VersionPublished)) {
		return VersionPublished
	}
	return VersionDraft
}

// DefaultLocale is the pseudo-locale used when no language is selected.
const DefaultLocale = "default"

// Story is one content entry as delivered by the Storyblok CDN API.
// Stories are immutable snapshots; nothing in this module mutates them
// after decoding.
type Story struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	FullSlug string `json:"full_slug"`
	IsFolder bool   `json:"is_folder"`

	// Content is the arbitrarily nested component tree. It is decoded with
	// encoding/json, so nodes are map[string]any, []any, string, float64,
	// bool or nil.
	Content any `json:"content,omitempty"`
}

// DisplayName returns the name used when listing the story, falling back
// to the slug and finally the UUID.
func (s *Story) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.FullSlug != "":
		return s.FullSlug
	case s.Slug != "":
		return s.Slug
	default:
		return s.UUID
	}
}

// DisplaySlug returns the full slug, or the slug when no full slug is set.
func (s *Story) DisplaySlug() string {
	if s.FullSlug != "" {
		return s.FullSlug
	}
	return s.Slug
}

// StorySummary is the lightweight record shown in the story selector.
type StorySummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	UUID     string `json:"uuid"`
	FullSlug string `json:"fullSlug"`
}
