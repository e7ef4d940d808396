// Package domain defines core types, interfaces, and errors for the log manager.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CompileErrorCode classifies why a filter list could not be compiled.
type CompileErrorCode string

// Compile error codes.
const (
	CompileNoValidFilters CompileErrorCode = "NO_VALID_FILTERS"
	CompileMalformedInput CompileErrorCode = "MALFORMED_INPUT"
)

// CompileError is returned when a filter list cannot be turned into a predicate.
type CompileError struct {
	Code    CompileErrorCode
	Message string
}

func (e *CompileError) Error() string { return e.Message }

// ErrNoValidFilters creates a CompileError for a filter list that yields no predicate.
func ErrNoValidFilters() *CompileError {
	return &CompileError{Code: CompileNoValidFilters, Message: "invalid query, no valid filters found"}
}

// ErrMalformedInput creates a CompileError for a structurally invalid filter list.
func ErrMalformedInput(format string, args ...interface{}) *CompileError {
	return &CompileError{Code: CompileMalformedInput, Message: fmt.Sprintf(format, args...)}
}

// ExtractError indicates an archive object key does not follow the
// <prefix>/YYYY/MM/DD/HH/... layout.
type ExtractError struct {
	Path    string
	Message string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("malformed partition path %q: %s", e.Path, e.Message)
}

// ErrMalformedKey creates an ExtractError for the given object path.
func ErrMalformedKey(path, format string, args ...interface{}) *ExtractError {
	return &ExtractError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// EngineError wraps a failure talking to the query engine.
type EngineError struct {
	Op  string // start, status, stop
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("query engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
