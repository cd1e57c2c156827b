package appointment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("caller is not permitted to perform this action")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentRequired   = errors.New("appointment must be paid before it can be completed")
	ErrConflict          = errors.New("appointment is being modified concurrently, please retry")
	ErrDependencyFailure = errors.New("medical history could not be recorded, please retry")
)

// ValidationError carries per-field messages and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
