package generation

import (
	"errors"
	"fmt"
)

var (
	ErrGenerationFailed      = errors.New("generation failed")
	ErrGenerationTimeout     = errors.New("generation timed out")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrEmptyOutput           = errors.New("generator returned no text")
	ErrPersonaRequired       = errors.New("persona id required")
)

// UnavailableError is returned when both the session path and the
// stateless fallback failed.
type UnavailableError struct {
	Primary  error
	Fallback error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v: primary: %v; fallback: %v", ErrGenerationUnavailable, e.Primary, e.Fallback)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrGenerationUnavailable }

func (e *UnavailableError) Unwrap() []error { return []error{e.Primary, e.Fallback} }
