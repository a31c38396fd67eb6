package domain

import (
	"fmt"
	"time"
)

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
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

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
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

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	Available float64
	Required  float64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%.2f required=%.2f", e.Available, e.Required)
}

// ErrLimitExceeded indicates a purchase would exceed the card's credit limit.
type ErrLimitExceeded struct {
	Limit     float64
	Used      float64
	Requested float64
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("credit limit exceeded: limit=%.2f used=%.2f requested=%.2f", e.Limit, e.Used, e.Requested)
}

// ErrChronology indicates an operation dated before the position's latest
// existing operation.
type ErrChronology struct {
	Latest    time.Time
	Attempted time.Time
}

func (e *ErrChronology) Error() string {
	return fmt.Sprintf("operation date %s precedes latest operation %s",
		e.Attempted.Format("2006-01-02"), e.Latest.Format("2006-01-02"))
}

// ErrDuplicate indicates a duplicate operation (idempotency check).
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate operation: %s", e.Key)
}

// ErrDataIntegrity indicates malformed persisted data, an invariant broken
// upstream of this engine. Unrecoverable, never silently skipped.
type ErrDataIntegrity struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ErrDataIntegrity) Error() string {
	return fmt.Sprintf("data integrity violation on %s %s: %s", e.Resource, e.ID, e.Reason)
}
