package storage

import (
	"errors"
	"fmt"
)

// Storage error types for categorizing storage failures. Callers switch on
// these coarse kinds with errors.Is; the underlying cause stays on the chain
// for diagnosis.
var (
	// ErrConnectionFailed indicates a failure to connect to the database.
	ErrConnectionFailed = errors.New("storage: connection failed")

	// ErrQueryFailed indicates a query execution failure.
	ErrQueryFailed = errors.New("storage: query failed")

	// ErrInsertFailed indicates an insert failure.
	ErrInsertFailed = errors.New("storage: insert failed")

	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("storage: not found")

	// ErrTimeout indicates an operation timeout.
	ErrTimeout = errors.New("storage: operation timeout")

	// ErrInvalidData indicates invalid data was provided.
	ErrInvalidData = errors.New("storage: invalid data")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op    string // Operation that failed (e.g., "Insert", "Query", "Resolve")
	Table string // Table involved, if applicable
	Err   error  // Underlying error, kind sentinel first on the chain
}

// Error returns the error message.
func (e *StoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage.%s(%s): %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsConnectionError checks if the error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsQueryError checks if the error is a query error.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable checks if the error is retryable (connection or timeout).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrTimeout)
}

// WrapConnectionError wraps an error as a connection error.
func WrapConnectionError(op string, err error) error {
	return &StoreError{
		Op:  op,
		Err: fmt.Errorf("%w: %w", ErrConnectionFailed, err),
	}
}

// WrapQueryError wraps an error as a query error, preserving the cause.
func WrapQueryError(op, table string, err error) error {
	return &StoreError{
		Op:    op,
		Table: table,
		Err:   fmt.Errorf("%w: %w", ErrQueryFailed, err),
	}
}

// WrapInsertError wraps an error as an insert error, preserving the cause.
func WrapInsertError(op, table string, err error) error {
	return &StoreError{
		Op:    op,
		Table: table,
		Err:   fmt.Errorf("%w: %w", ErrInsertFailed, err),
	}
}

// WrapNotFoundError wraps an error as a not found error.
func WrapNotFoundError(op, table, id string) error {
	return &StoreError{
		Op:    op,
		Table: table,
		Err:   fmt.Errorf("%w: id=%s", ErrNotFound, id),
	}
}
