package service

import (
	"errors"
	"fmt"

	"github.com/sprayline/foamops-api/internal/inventory"
)

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")
)

// Estimate lifecycle errors
var (
	ErrEstimateNotFound = errors.New("estimate not found")

	// ErrEstimateExists is returned when a client-generated id is already taken
	ErrEstimateExists = errors.New("estimate already exists")

	// ErrCustomerNameRequired is returned by transitions that need a named customer
	ErrCustomerNameRequired = errors.New("customer name is required")

	// ErrInvalidTransition is returned when the estimate is in the wrong state for an action
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrActualsAlreadyRecorded is returned when a crew tries to complete a job twice
	ErrActualsAlreadyRecorded = errors.New("job actuals already recorded")

	// ErrFinancialsAlreadyRecorded is returned when a paid estimate is paid again
	ErrFinancialsAlreadyRecorded = errors.New("financial snapshot already recorded")

	// ErrShortageNotConfirmed is wrapped by ShortageError
	ErrShortageNotConfirmed = errors.New("stock shortage must be acknowledged")

	// ErrPushForbiddenForCrew is returned when a crew device pushes the shared dataset
	ErrPushForbiddenForCrew = errors.New("crew role cannot push the shared dataset")
)

// ShortageError carries the materials that would go negative so the caller
// can ask the user to confirm
type ShortageError struct {
	Shortages []inventory.Shortage
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("%s: %d material(s) short", ErrShortageNotConfirmed, len(e.Shortages))
}

func (e *ShortageError) Unwrap() error {
	return ErrShortageNotConfirmed
}

// transitionError names the offending state
func transitionError(action string, state fmt.Stringer) error {
	return fmt.Errorf("%w: cannot %s estimate in state %s", ErrInvalidTransition, action, state)
}
