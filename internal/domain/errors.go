package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ValidationError is bad caller input. Nothing was mutated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError names the missing record. It matches ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ExternalServiceError is a failure of the draft generator or a publishing
// channel, including malformed output.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ConflictError means a concurrent change broke a queue operation. The caller
// may retry the whole operation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Message }

// PersistenceError is a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err unless it already carries a domain classification.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		cErr *ConflictError
		pErr *PersistenceError
		xErr *ExternalServiceError
	)
	if errors.Is(err, ErrNotFound) || errors.As(err, &vErr) || errors.As(err, &cErr) ||
		errors.As(err, &pErr) || errors.As(err, &xErr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
