package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConcurrentModification indicates a competing writer won the race for the same row.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrReferentialIntegrity indicates a referenced product, supplier or location is unknown or inactive.
	ErrReferentialIntegrity = errors.New("referential integrity failure")
	// ErrActorRequired occurs when a mutating call carries no actor.
	ErrActorRequired = errors.New("actor required")
)

// DetailError attaches structured details to a sentinel so callers can
// match with errors.Is and still report offending values.
type DetailError struct {
	Err     error
	Details map[string]any
}

func (e *DetailError) Error() string {
	if len(e.Details) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s %v", e.Err.Error(), e.Details)
}

func (e *DetailError) Unwrap() error {
	return e.Err
}

// WithDetails wraps err with details.
func WithDetails(err error, details map[string]any) error {
	if err == nil {
		return nil
	}
	return &DetailError{Err: err, Details: details}
}

// DetailsOf returns the details carried by err, if any.
func DetailsOf(err error) map[string]any {
	var de *DetailError
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}
