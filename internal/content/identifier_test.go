package content_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/storyblok-devtools/internal/content"
)

func TestIsIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"canonical lowercase", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", true},
		{"canonical uppercase", "3F2504E0-4F89-11D3-9A0C-0305E82C3301", true},
		{"surrounding whitespace", "  3f2504e0-4f89-11d3-9a0c-0305e82c3301\n", true},
		{"embedded in prose", "see 3f2504e0-4f89-11d3-9a0c-0305e82c3301", false},
		{"no hyphens", "3f2504e04f8911d39a0c0305e82c3301", false},
		{"braced", "{3f2504e0-4f89-11d3-9a0c-0305e82c3301}", false},
		{"urn form", "urn:uuid:3f2504e0-4f89-11d3-9a0c-0305e82c3301", false},
		{"wrong grouping", "3f2504e04-f89-11d3-9a0c-0305e82c3301", false},
		{"non hex", "3g2504e0-4f89-11d3-9a0c-0305e82c3301", false},
		{"empty", "", false},
		{"plain text", "hello world", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, content.IsIdentifier(tt.in))
		})
	}
}
