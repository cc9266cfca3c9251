package appointment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("appointment not found")
	ErrValidation         = errors.New("validation error")
	ErrInvalidStatus      = errors.New("invalid appointment status")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrBookingNotEligible = errors.New("booking is not approved")
)

// ValidationError lists the offending fields; it matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
