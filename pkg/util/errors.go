// Package util provides logging, naming helpers, and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the adapter's failure taxonomy. Callers classify
// failures with errors.Is against these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrRebooting       = errors.New("forwarding plane is rebooting")
	ErrReconcileFailed = errors.New("reconcile failed")
	ErrUnboundPath     = errors.New("no handler bound for path")
	ErrNotFound        = errors.New("resource not found")
)

// ValidationError rejects a whole commit batch before any side effect.
// It is user-correctable and leaves no state change behind.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// NewValidationErrorf creates a validation error from a single formatted message
func NewValidationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Errors: []string{fmt.Sprintf(format, args...)}}
}

// UnknownEntityError marks a change event that referenced an interface the
// driver does not know. Distinct from ordinary validation failure: it points
// at a schema/driver mismatch, not at a correctable user input.
type UnknownEntityError struct {
	Kind string
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

func (e *UnknownEntityError) Unwrap() error {
	return ErrUnknownEntity
}

// NewUnknownInterfaceError creates an UnknownEntityError for an interface name
func NewUnknownInterfaceError(name string) *UnknownEntityError {
	return &UnknownEntityError{Kind: "interface", Name: name}
}

// ApplyError surfaces a mid-batch apply failure after the compensating
// revert chain has run. The commit must never be reported successful.
type ApplyError struct {
	Path string
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed for %s: %v", e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// NewApplyError creates an apply error for the given path
func NewApplyError(path string, err error) *ApplyError {
	return &ApplyError{Path: path, Err: err}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
