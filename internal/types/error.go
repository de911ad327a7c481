package types

import (
	"fmt"
	"strings"
)

// CustomError is an HTTP-facing failure carrying its own status code.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// NotFoundError reports a missing entity, or one the caller may not see.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InactiveFormError reports a form that exists but does not accept input.
type InactiveFormError struct {
	FormID string
}

func (e *InactiveFormError) Error() string {
	return fmt.Sprintf("form %s is not active", e.FormID)
}

// AuthenticationRequiredError reports an operation that needs a known user.
type AuthenticationRequiredError struct {
	Reason string
}

func (e *AuthenticationRequiredError) Error() string {
	if e.Reason == "" {
		return "authentication required"
	}
	return "authentication required: " + e.Reason
}

// FieldError is one per-field problem found while validating a submission.
type FieldError struct {
	FieldID string `json:"field_id"`
	Reason  string `json:"reason"`
}

// ValidationError collects every field error of one submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.FieldID + ": " + f.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (e *ValidationError) Add(fieldID, reason string) {
	e.Fields = append(e.Fields, FieldError{FieldID: fieldID, Reason: reason})
}

// Err returns e when it holds field errors, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AuthorizationError reports a user lacking a permission.
type AuthorizationError struct {
	UserID     string
	Permission string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q lacks permission %q", e.UserID, e.Permission)
}

// ConfigurationError reports an invalid form definition, such as a bad field
// payload or a cyclic conditional dependency.
type ConfigurationError struct {
	FieldIDs []string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if len(e.FieldIDs) == 0 {
		return "invalid form configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid form configuration (%s): %s", strings.Join(e.FieldIDs, ", "), e.Reason)
}

// VersionError reports an optimistic lock conflict.
type VersionError struct {
	Entity   string
	ID       string
	Expected uint64
	Actual   uint64
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("E_VERSION: %s %s is at version %d, not %d", e.Entity, e.ID, e.Actual, e.Expected)
}

// SubmissionLimitError reports a form that refuses further responses.
type SubmissionLimitError struct {
	FormID string
	Reason string
}

func (e *SubmissionLimitError) Error() string {
	return fmt.Sprintf("form %s accepts no more responses: %s", e.FormID, e.Reason)
}
