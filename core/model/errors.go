package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a vessel or berth id is unknown.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input rejected at the boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
