// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetNotFound is returned when no ledger file exists yet.
	ErrDatasetNotFound = errors.New("no customer data available yet")
	// ErrReplicaNotFound is returned when the remote store has no copy of the ledger.
	ErrReplicaNotFound = errors.New("replica not found")
)

// ValidationError is user-correctable bad or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// ConflictError means an existing entrant already holds the email or phone.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func NewConflictError(field string) error {
	return &ConflictError{Field: field}
}

// CorruptionError describes a persisted table that does not have the expected shape.
type CorruptionError struct {
	Reason string
	Err    error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt ledger: %s: %v", e.Reason, e.Err)
	}
	return "corrupt ledger: " + e.Reason
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

func NewCorruptionError(reason string, err error) error {
	return &CorruptionError{Reason: reason, Err: err}
}

// PersistenceError is a write or verification failure after all attempts.
type PersistenceError struct {
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger write failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistenceError(attempts int, err error) error {
	return &PersistenceError{Attempts: attempts, Err: err}
}

// ReplicationError is a failed push or pull against the remote store.
type ReplicationError struct {
	Op  string
	Err error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replica %s failed: %v", e.Op, e.Err)
}

func (e *ReplicationError) Unwrap() error {
	return e.Err
}

func NewReplicationError(op string, err error) error {
	return &ReplicationError{Op: op, Err: err}
}

// IsCorruption reports whether err is, or wraps, a CorruptionError.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
