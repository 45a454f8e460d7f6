package entity

import (
	"errors"
	"strings"
)

// Sentinel errors for entity lookups and versioned writes.
var (
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("entity was modified concurrently")
)

// FieldError describes one rejected field.
type FieldError struct {
	Field        string `json:"field"`
	Message      string `json:"message"`
	InvalidValue any    `json:"invalidValue"`
}

// ValidationError carries every field rejected by a save or update.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError is a shortcut for a single rejected field.
func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message, InvalidValue: value}}}
}

// DuplicateError reports a unique-key collision. Messages lists the colliding
// key columns, or a human message when the key is implicit.
type DuplicateError struct {
	Messages []string
}

func (e *DuplicateError) Error() string {
	return "duplicate entity: " + strings.Join(e.Messages, ", ")
}

// NewDuplicateError builds a DuplicateError from the colliding fields.
func NewDuplicateError(messages ...string) *DuplicateError {
	return &DuplicateError{Messages: messages}
}
