package errors

import (
	"fmt"
	"strings"
)

// Issue describes a single failed input constraint.
type Issue struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ValidationError lists every constraint an input failed.
// errors.Is(err, ErrValidation) holds for any *ValidationError.
type ValidationError struct {
	Issues []Issue
}

// NewValidationError returns a ValidationError carrying issues.
func NewValidationError(issues ...Issue) *ValidationError {
	return &ValidationError{Issues: issues}
}

// Add appends an issue.
func (v *ValidationError) Add(field, constraint, message string) {
	v.Issues = append(v.Issues, Issue{Field: field, Constraint: constraint, Message: message})
}

// OrNil returns nil when no issues were recorded.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Issues) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Issues))
	for _, issue := range v.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Is matches ErrValidation.
func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
