package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation                   = errors.New("validation error")
	ErrNotFound                     = errors.New("booking not found")
	ErrConcurrentModification       = errors.New("booking was modified concurrently")
	ErrInvalidStageTransition       = errors.New("invalid stage transition")
	ErrBookingLocked                = errors.New("booking is locked")
	ErrCancellationPending          = errors.New("cancellation request already pending")
	ErrNoPendingCancellation        = errors.New("no pending cancellation request")
	ErrReferenceCollision           = errors.New("reference number already issued")
	ErrReferenceGenerationExhausted = errors.New("reference number generation exhausted")
	ErrPartialTransition            = errors.New("partial transition")
	ErrCascadeFailure               = errors.New("cascade delete failed")
)

// ValidationError matches ErrValidation. Message is the user-facing summary;
// Fields maps request field names to the failed rule.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func newValidationError(fields map[string]string) *ValidationError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, fields[k]))
	}
	return &ValidationError{Message: strings.Join(parts, ", "), Fields: fields}
}

func requiredField(name string) *ValidationError {
	return &ValidationError{Message: name + " required", Fields: map[string]string{name: "required"}}
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PartialTransitionError reports a saga that committed its durable write but failed a
// later step. Retrying the same operation with the same booking id resumes at Step.
type PartialTransitionError struct {
	BookingID string
	Operation string
	Step      string
	Err       error
}

func (e *PartialTransitionError) Error() string {
	return fmt.Sprintf("%s %s: step %s incomplete: %v", e.Operation, e.BookingID, e.Step, e.Err)
}

func (e *PartialTransitionError) Is(target error) bool {
	return target == ErrPartialTransition
}

func (e *PartialTransitionError) Unwrap() error {
	return e.Err
}

// CascadeError reports a dependent appointment that could not be removed.
// The booking itself is left in place.
type CascadeError struct {
	BookingID string
	Err       error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete %s: appointments not removed: %v", e.BookingID, e.Err)
}

func (e *CascadeError) Is(target error) bool {
	return target == ErrCascadeFailure
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
