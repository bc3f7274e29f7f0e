// Package errors provides a lightweight structured error type (GobnError)
// for category-based classification across the build pipeline, settings
// patcher, constraint encoder and solver runner.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a gobn error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Build state machine errors
	CategoryUnpack     ErrorCategory = "unpack"
	CategoryBuild      ErrorCategory = "build"
	CategoryLink       ErrorCategory = "link"
	CategoryDependency ErrorCategory = "dependency"

	// Solver input preparation errors
	CategorySettings   ErrorCategory = "settings"
	CategoryConstraint ErrorCategory = "constraint"
	CategoryDataset    ErrorCategory = "dataset"

	// Runtime and infrastructure errors
	CategoryInvoke     ErrorCategory = "invoke"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryHistory    ErrorCategory = "history"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// GobnError is a structured error with category, severity, and context
type GobnError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Output   string        `json:"output,omitempty"` // captured child-process output, if any
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for GobnError
type ContextFields map[string]any

// Error implements the error interface
func (e *GobnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *GobnError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *GobnError) WithContext(key string, value any) *GobnError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithOutput attaches captured child-process output to the error.
func (e *GobnError) WithOutput(output string) *GobnError {
	e.Output = output
	return e
}

// New creates a new GobnError
func New(category ErrorCategory, severity ErrorSeverity, message string) *GobnError {
	return &GobnError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new GobnError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *GobnError {
	return &GobnError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if ge, ok := err.(*GobnError); ok {
		return ge.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a GobnError
func GetCategory(err error) ErrorCategory {
	if ge, ok := err.(*GobnError); ok {
		return ge.Category
	}
	return CategoryInternal
}

// CapturedOutput extracts attached child-process output from an error chain, if any.
func CapturedOutput(err error) string {
	if ge, ok := err.(*GobnError); ok {
		return ge.Output
	}
	return ""
}
