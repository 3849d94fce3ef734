package resolution

import (
	"errors"
	"fmt"
)

// Errors returned by the resolution package.
var (
	// ErrMissingRequiredField is returned when a required body field has no value.
	ErrMissingRequiredField = errors.New("resolution: missing required field")
	// ErrInvalidEnumValue is returned when an enum field holds a value outside its enum.
	ErrInvalidEnumValue = errors.New("resolution: invalid enum value")
	// ErrGenerationFallback tags any unexpected pipeline failure, panics included.
	ErrGenerationFallback = errors.New("resolution: generation fallback")
	// ErrNoDocument is returned when a request carries no document.
	ErrNoDocument = errors.New("resolution: no document")
)

// ValidationKind identifies the validator check that failed.
type ValidationKind string

const (
	KindMissingRequiredField ValidationKind = "MissingRequiredField"
	KindInvalidEnumValue     ValidationKind = "InvalidEnumValue"
)

// ValidationError is returned by the validator stage.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindInvalidEnumValue:
		return fmt.Sprintf("invalid enum value for %s: %v", e.Field, e.Value)
	default:
		return fmt.Sprintf("missing required field: %s", e.Field)
	}
}

// Unwrap maps the error onto its sentinel.
func (e *ValidationError) Unwrap() error {
	if e.Kind == KindInvalidEnumValue {
		return ErrInvalidEnumValue
	}
	return ErrMissingRequiredField
}
