package content

import (
	"strings"

	"github.com/google/uuid"
)

// identifierLength is the length of the canonical 8-4-4-4-12 layout.
const identifierLength = 36

// IsIdentifier reports whether text, once trimmed, is exactly a story UUID
// in canonical hyphenated form. Hex digits may be either case. Identifiers
// embedded in longer text do not match.
func IsIdentifier(text string) bool {
	s := strings.TrimSpace(text)
	if len(s) != identifierLength {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
