package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfiguration is the class of errors caused by missing input. They are
// reported immediately and never trigger network access.
var ErrConfiguration = errors.New("engine: configuration error")

var (
	// ErrMissingSubject is returned when no story uuid is available.
	ErrMissingSubject = fmt.Errorf("%w: no story uuid available", ErrConfiguration)

	// ErrMissingToken is returned when no access token is configured.
	ErrMissingToken = fmt.Errorf("%w: no Storyblok access token configured", ErrConfiguration)

	// ErrClosed is returned by operations on a closed Analyzer.
	ErrClosed = errors.New("engine: analyzer closed")
)

// IsCanceled reports whether err means the analysis was superseded or its
// caller went away. Canceled analyses are never surfaced as errors.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
