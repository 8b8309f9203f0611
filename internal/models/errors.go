package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration reports parameters that can never produce a result,
	// such as a chunk overlap that is not smaller than the chunk size.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnsupportedFormat is returned for a document extension with no registered extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmbeddingUnavailable means the embedding backend could not produce a vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrDegenerateVector is returned when cosine similarity is asked of a zero-norm vector.
	ErrDegenerateVector = errors.New("degenerate vector")
	// ErrDimensionMismatch is returned when two vectors of different length are compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNoSQLFound means no line of an LLM response starts a SQL statement.
	ErrNoSQLFound = errors.New("no sql found")
	// ErrExecution wraps every database rejection of generated SQL.
	ErrExecution = errors.New("execution error")
	// ErrLogging wraps history logging failures. It is never returned to callers of the pipeline.
	ErrLogging = errors.New("logging error")
	// ErrNotFound is returned by lookups of a missing record.
	ErrNotFound = errors.New("not found")
	// ErrLLMUnavailable means the language model endpoint could not be reached or failed.
	ErrLLMUnavailable = errors.New("llm unavailable")
)

// ConfigurationError describes which parameter was rejected.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidConfiguration) hold.
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigurationError returns a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ExecutionError carries the statement the database rejected.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap returns both the sentinel and the driver error.
func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}
