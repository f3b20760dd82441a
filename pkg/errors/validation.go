package errors

import (
	"fmt"
	"strings"
)

// FieldError ties a validation failure to the request field that caused it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects per-field failures so a bad request reports
// everything wrong with it in a single round trip.
type ValidationErrors struct {
	fields []FieldError
}

// NewValidationErrors creates an empty collector
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{fields: []FieldError{}}
}

// Add records a failure against a named field
func (v *ValidationErrors) Add(field, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

// AddError records an arbitrary error against a named field, flattening
// AppError messages to their human-readable form
func (v *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	if appErr := GetAppError(err); appErr != nil {
		v.Add(field, appErr.Message)
		return
	}
	v.Add(field, err.Error())
}

// HasErrors reports whether any failure was recorded
func (v *ValidationErrors) HasErrors() bool {
	return len(v.fields) > 0
}

// Fields returns the recorded failures
func (v *ValidationErrors) Fields() []FieldError {
	fields := make([]FieldError, len(v.fields))
	copy(fields, v.fields)
	return fields
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v.fields))
	for _, f := range v.fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsAppError folds the collected failures into a single validation
// AppError carrying the per-field breakdown. Returns nil when empty.
func (v *ValidationErrors) AsAppError() *AppError {
	if !v.HasErrors() {
		return nil
	}
	return NewValidationError("request validation failed").
		WithDetail("fields", v.Fields())
}
