package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested key was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateKey rejects keys no backend can store.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	return nil
}
