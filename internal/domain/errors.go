package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
	ErrConflict     = errors.New("conflict")
)

// Specific errors.
var (
	ErrWorkAreaNotFound   = fmt.Errorf("work area: %w", ErrNotFound)
	ErrWorkAreaExists     = fmt.Errorf("work area: %w", ErrConflict)
	ErrMapNotFound        = fmt.Errorf("map: %w", ErrNotFound)
	ErrMapExists          = fmt.Errorf("map: %w", ErrConflict)
	ErrInvalidCoordinate  = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrDegenerateInput    = fmt.Errorf("degenerate polygon: %w", ErrInvalidInput)
	ErrUnknownDatum       = fmt.Errorf("datum: %w", ErrUnsupported)
	ErrNotReady           = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
)

// InvalidCoordinateError reports a non-finite coordinate value.
type InvalidCoordinateError struct {
	Index int     // Vertex index, -1 for a single point
	Field string  // "lng" or "lat"
	Value float64 // The offending value
}

// Error implements the error interface.
func (e *InvalidCoordinateError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid coordinate: %s is %v", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid coordinate at vertex %d: %s is %v", e.Index, e.Field, e.Value)
}

// Unwrap returns the underlying error type.
func (e *InvalidCoordinateError) Unwrap() error {
	return ErrInvalidCoordinate
}

// DegenerateInputError reports a polygon whose centroid is undefined.
type DegenerateInputError struct {
	Vertices int    // Number of vertices supplied
	Reason   string // Why the polygon is degenerate
}

// Error implements the error interface.
func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate polygon with %d vertices: %s", e.Vertices, e.Reason)
}

// Unwrap returns the underlying error type.
func (e *DegenerateInputError) Unwrap() error {
	return ErrDegenerateInput
}

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ParseError is returned when a coordinate set cannot be decoded.
type ParseError struct {
	Format string // Detected encoding (json, wkt, text)
	Line   int    // 1-based line for text input, 0 otherwise
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s coordinate set at line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s coordinate set: %v", e.Format, e.Err)
}

// Unwrap returns ErrInvalidInput and the underlying error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidInput, e.Err}
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
