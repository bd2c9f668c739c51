// Package faults holds the error taxonomy shared by the workflow engine,
// the transaction coordinator and the storage layer. Handlers map these
// onto HTTP statuses; nothing here carries transport detail.
package faults

import (
	"errors"
	"fmt"
)

// ValidationError rejects a disallowed transition or malformed input
// before any mutation happened.
type ValidationError struct {
	Msg string
	Err error
}

func (e ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError means a conditional write's precondition no longer held:
// a claim was lost or the booking status changed concurrently. The caller
// should re-read and decide whether to retry.
type ConflictError struct {
	Resource string
	Msg      string
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

// ExternalServiceError wraps a payment-gateway failure. Mid-saga it
// triggers compensation.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e ExternalServiceError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("external service error: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e ExternalServiceError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("persistence error: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }

// RollbackFailure means a compensation step itself errored. The saga
// records the transaction as failed, never as rolled_back, and the
// condition must reach an operator.
type RollbackFailure struct {
	Step string
	Err  error
}

func (e RollbackFailure) Error() string {
	return fmt.Sprintf("rollback failed at %s: %v", e.Step, e.Err)
}

func (e RollbackFailure) Unwrap() error { return e.Err }

var ErrNotFound = errors.New("record not found")

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsExternal(err error) bool {
	var target ExternalServiceError
	return errors.As(err, &target)
}

func IsRollbackFailure(err error) bool {
	var target RollbackFailure
	return errors.As(err, &target)
}
