package service

import (
	"errors"
	"fmt"
)

var (
	ErrMissingPlan              = errors.New("a plan must be set before this operation")
	ErrUserMismatch             = errors.New("hosted page does not belong to the current subscriber")
	ErrValidation               = errors.New("invalid add-on")
	ErrRemoteService            = errors.New("chargebee request failed")
	ErrSubscriberRequired       = errors.New("a subscriber must be set before this operation")
	ErrCheckoutNotCompleted     = errors.New("hosted checkout has not completed")
	ErrInvalidSubscriptionState = errors.New("subscription is not in a valid state for this operation")
	ErrReconciliationRequired   = errors.New("remote subscription was not recorded locally")
)

// ValidationError describes a rejected add-on selection.
type ValidationError struct {
	AddOn AddOn
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid add-on %q (quantity %d): %v", e.AddOn.ID, e.AddOn.Quantity, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RemoteServiceError wraps any failure surfaced by the Chargebee API.
type RemoteServiceError struct {
	Operation string
	Err       error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

func (e *RemoteServiceError) Is(target error) bool {
	return target == ErrRemoteService
}

// ReconciliationError is returned when the remote call succeeded but the
// local records could not be written. SubscriptionID names the remote
// subscription that needs to be reconciled.
type ReconciliationError struct {
	SubscriptionID string
	Err            error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("subscription %s exists remotely but was not persisted: %v", e.SubscriptionID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

func (e *ReconciliationError) Is(target error) bool {
	return target == ErrReconciliationRequired
}

func remoteError(operation string, err error) error {
	return &RemoteServiceError{Operation: operation, Err: err}
}
