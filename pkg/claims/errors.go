package claims

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a value that is not a finite number or has
	// the wrong type.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyAggregate indicates an average requested over zero details.
	ErrEmptyAggregate = errors.New("average over empty details")
)

// InputError locates an invalid value inside a claim. It matches
// ErrInvalidInput with errors.Is.
type InputError struct {
	ClaimID string
	// Position is the zero-based detail index, or -1 for a header field.
	Position int
	Field    string
	// Value is the offending value as it appeared in the source.
	Value string
}

func (e *InputError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("%v: claim %q field %s: %s", ErrInvalidInput, e.ClaimID, e.Field, e.Value)
	}
	return fmt.Sprintf("%v: claim %q detail %d field %s: %s", ErrInvalidInput, e.ClaimID, e.Position, e.Field, e.Value)
}

// Unwrap returns ErrInvalidInput.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}
