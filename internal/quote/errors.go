package quote

import (
	"errors"
	"fmt"
	"strings"
)

// FieldViolation names one violated input field with the reason.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every violated field of a request, never just the
// first one, so callers can surface all problems at once.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return "quote: invalid request: " + strings.Join(parts, "; ")
}

// AsValidationError extracts a ValidationError from err if present.
func AsValidationError(err error) (*ValidationError, bool) {
	var target *ValidationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CalculationError covers arithmetic and configuration failures discovered
// mid-calculation, such as an unconfigured payment gateway or a negative
// resulting total.
type CalculationError struct {
	Reason string
	Err    error
}

func (e *CalculationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quote: calculation failed: %s: %v", e.Reason, e.Err)
	}
	return "quote: calculation failed: " + e.Reason
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// IsCalculationError reports whether err wraps a CalculationError.
func IsCalculationError(err error) bool {
	var target *CalculationError
	return errors.As(err, &target)
}
