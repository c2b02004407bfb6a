package relations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/storyblok-devtools/internal/relations"
	"github.com/scrypster/storyblok-devtools/pkg/types"
)

func entry(name, slug, uuid string, paths ...string) types.RelationEntry {
	e := types.RelationEntry{StoryName: name, StorySlug: slug, StoryUUID: uuid}
	for _, p := range paths {
		key := "link"
		e.Occurrences = append(e.Occurrences, types.Occurrence{Path: p, FieldKey: &key})
	}
	return e
}

func TestMatches(t *testing.T) {
	e := entry("Landing Page", "campaigns/landing", blogID, "content.hero.cta")

	assert.True(t, relations.Matches(e, ""))
	assert.True(t, relations.Matches(e, "  LANDING "))
	assert.True(t, relations.Matches(e, "campaigns/"))
	assert.True(t, relations.Matches(e, "bbbbbbbb"))
	assert.True(t, relations.Matches(e, "hero.cta"))
	assert.True(t, relations.Matches(e, "link"))
	assert.False(t, relations.Matches(e, "footer"))
}

func TestFilter_Apply(t *testing.T) {
	inbound := []types.RelationEntry{entry("About", "about", aboutID, "content.a")}
	outbound := []types.RelationEntry{
		entry("Blog", "blog", blogID, "content.b"),
		entry("Home", "home", homeID, "content.c"),
	}

	in, out := relations.DefaultFilter().Apply(inbound, outbound)
	assert.Len(t, in, 1)
	assert.Len(t, out, 2)

	in, out = relations.Filter{Search: "blog", Inbound: true, Outbound: true}.Apply(inbound, outbound)
	assert.Empty(t, in)
	assert.Len(t, out, 1)

	in, out = relations.Filter{Inbound: false, Outbound: true}.Apply(inbound, outbound)
	assert.NotNil(t, in)
	assert.Empty(t, in)
	assert.Len(t, out, 2)
}
