package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repo and service functions when the requested
// trip, destination or log entry does not exist or has been tombstoned.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input is malformed or
// a required field is missing (e.g. no approving officer on a trip that
// needs one).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrForbidden is returned when the actor does not own, or is not designated
// on, the entity it is trying to change.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("not authorized")

// ErrPrecondition is returned when the current state does not permit the
// requested transition, e.g. completing a trip with open destinations.
// Handlers should map this to HTTP 409 with code "precondition_failed".
var ErrPrecondition = errors.New("precondition failed")

// ErrConflict is returned when the entity is already in a terminal or decided
// state: approving twice, ending a destination twice.
// Handlers should map this to HTTP 409 with code "conflict".
var ErrConflict = errors.New("conflict")

// StateError describes a rejected transition with enough context for the
// caller to understand why. It unwraps to its Kind, so errors.Is works
// against the sentinels above.
type StateError struct {
	Kind   error
	Entity string
	ID     uuid.UUID
	State  string
	Reason string
}

func (e *StateError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("%v: %s %s: %s", e.Kind, e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s (%s): %s", e.Kind, e.Entity, e.ID, e.State, e.Reason)
}

func (e *StateError) Unwrap() error { return e.Kind }

// Message returns the human-readable part of the error without the kind prefix.
func (e *StateError) Message() string {
	if e.State == "" {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %s is %s: %s", e.Entity, e.ID, e.State, e.Reason)
}

func stateErr(kind error, entity string, id uuid.UUID, state, reason string) error {
	return &StateError{Kind: kind, Entity: entity, ID: id, State: state, Reason: reason}
}
