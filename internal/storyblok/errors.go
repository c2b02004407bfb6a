package storyblok

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is in open state
	// and rejects requests to the CDN.
	ErrCircuitOpen = errors.New("storyblok: circuit breaker is open")

	// ErrStoryNotFound is returned when a story response has no story body.
	ErrStoryNotFound = errors.New("storyblok: story not found")
)

// NetworkError reports a non-success response from the CDN.
type NetworkError struct {
	// Resource names what was being loaded: "stories", "story" or "space".
	Resource   string
	StatusCode int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("storyblok: failed to load %s (%d)", e.Resource, e.StatusCode)
}

// Temporary reports whether retrying the same request could succeed.
// Client errors other than 429 are permanent.
func (e *NetworkError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
