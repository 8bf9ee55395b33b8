package shared

import (
	"errors"
	"fmt"
)

// Failure kind sentinels. Domain packages wrap these via Fail so that
// callers can branch with errors.Is regardless of which module produced
// the failure.
var (
	// ErrValidation indicates malformed, missing, or non-positive input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the actor's role lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState indicates the action is not valid from the entity's current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransition indicates a stage transition the pipeline does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an optimistic update lost a race.
	ErrConflict = errors.New("concurrency conflict")
)

// Fail carries a failure kind together with enough structure for the
// caller to render a message: the human text, the offending field, and an
// optional count (e.g. number of unpriced BOQ items).
type Fail struct {
	Kind    error
	Message string
	Field   string
	Count   int
}

// Error implements the error interface.
func (f *Fail) Error() string {
	if f.Field != "" {
		return fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return f.Message
}

// Unwrap exposes the kind sentinel to errors.Is.
func (f *Fail) Unwrap() error { return f.Kind }

// Failf builds a Fail of the given kind with a formatted message.
func Failf(kind error, format string, args ...any) error {
	return &Fail{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FieldFailf builds a validation Fail scoped to a single field.
func FieldFailf(field, format string, args ...any) error {
	return &Fail{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// CountFailf builds a Fail carrying an offending-item count.
func CountFailf(kind error, count int, format string, args ...any) error {
	return &Fail{Kind: kind, Count: count, Message: fmt.Sprintf(format, args...)}
}

// AsFail extracts a *Fail from an error chain when present.
func AsFail(err error) (*Fail, bool) {
	var f *Fail
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
