package domain

import "fmt"

// Error types for consistent error handling across the ledger.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in a call to the persistence backend.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrTransitionNotAllowed indicates the lifecycle rules reject an action
// for the record's current state.
type ErrTransitionNotAllowed struct {
	ID     string
	From   Status
	Action string
}

func (e *ErrTransitionNotAllowed) Error() string {
	return fmt.Sprintf("cannot %s transaction %s with status '%s'", e.Action, e.ID, e.From)
}

// ErrInvalidDate indicates a raw date string that carries no calendar date.
type ErrInvalidDate struct {
	Input string
}

func (e *ErrInvalidDate) Error() string {
	return fmt.Sprintf("invalid date: %q", e.Input)
}
