package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")

	// ErrIngestion is fatal to one document's ingestion.
	ErrIngestion = errors.New("ingestion failed")
	// ErrUnsupportedFormat is returned for document formats the partitioner cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrRerankUnavailable is recoverable: callers keep the retrieval order.
	ErrRerankUnavailable = errors.New("rerank unavailable")
	// ErrGeneration is a model call failure; it fails the enclosing section and job.
	ErrGeneration = errors.New("generation failed")
	// ErrDependencyUnresolved marks a section dependency that points at no earlier section.
	ErrDependencyUnresolved = errors.New("section dependency unresolved")
	// ErrJobTerminal is returned when a job can no longer change state.
	ErrJobTerminal = errors.New("job already finished")
)

// ValidationError represents a validation error with a field name.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Classify tags err with a taxonomy sentinel so that errors.Is matches both.
func Classify(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
