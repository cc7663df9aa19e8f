package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrPackageNotFound     = errors.New("travel package not found")
	ErrTravelerNotFound    = errors.New("traveler not found")
	ErrTransactionNotFound = errors.New("payment transaction not found")

	// ErrPackageUnavailable is returned when a package exists but is not bookable
	ErrPackageUnavailable = errors.New("travel package is not available for booking")

	ErrForbidden          = errors.New("you do not have access to this booking")
	ErrBookingCancelled   = errors.New("booking has been cancelled")
	ErrBookingAlreadyPaid = errors.New("booking is already fully paid")

	// ErrInvalidSignature is returned when a webhook signature does not match the payload
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrDuplicateReference wraps unique constraint violations on generated references
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrSerializationFailure wraps serialization failures and deadlocks reported by postgres
	ErrSerializationFailure = errors.New("transaction serialization failure")

	// ErrReferenceExhausted is returned when no unique reference could be generated
	ErrReferenceExhausted = errors.New("failed to generate a unique reference")
)

// ValidationError reports a malformed or missing input field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PartySizeError is returned when the number of travelers falls outside a package's limits
type PartySizeError struct {
	Requested int `json:"requested"`
	Min       int `json:"min_travelers"`
	Max       int `json:"max_travelers"`
}

func (e *PartySizeError) Error() string {
	if e.Requested < e.Min {
		return fmt.Sprintf("minimum %d travelers required, got %d", e.Min, e.Requested)
	}
	return fmt.Sprintf("maximum %d travelers allowed, got %d", e.Max, e.Requested)
}

// CapacityExceededError is returned when a request needs more places than remain
type CapacityExceededError struct {
	Scope     string `json:"scope"` // "travel_date" or "booking"
	Requested int    `json:"requested"`
	Remaining int    `json:"remaining"`
}

func (e *CapacityExceededError) Error() string {
	if e.Scope == CapacityScopeBooking {
		return fmt.Sprintf("booking already holds its maximum number of travelers (%d remaining)", e.Remaining)
	}
	return fmt.Sprintf("only %d slots available, %d requested", e.Remaining, e.Requested)
}

const (
	CapacityScopeTravelDate = "travel_date"
	CapacityScopeBooking    = "booking"
)

// TravelerCountMismatchError is returned when more travelers are supplied than declared
type TravelerCountMismatchError struct {
	Declared int `json:"declared"`
	Supplied int `json:"supplied"`
}

func (e *TravelerCountMismatchError) Error() string {
	return fmt.Sprintf("%d travelers supplied but booking declares %d", e.Supplied, e.Declared)
}

// InvalidTransitionError is returned when a state machine rejects a transition
type InvalidTransitionError struct {
	Entity string `json:"entity"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move %s from %s to %s", e.Entity, e.From, e.To)
}

// CancellationWindowError is returned when a booking is too close to its travel date to cancel
type CancellationWindowError struct {
	DaysUntilTravel int `json:"days_until_travel"`
	MinimumDays     int `json:"minimum_days"`
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("bookings can only be cancelled more than %d days before travel (%d days left)",
		e.MinimumDays, e.DaysUntilTravel)
}

// InvalidAmountError is returned when a payment amount is not positive or exceeds the amount due
type InvalidAmountError struct {
	Amount    decimal.Decimal `json:"amount"`
	AmountDue decimal.Decimal `json:"amount_due"`
}

func (e *InvalidAmountError) Error() string {
	if !e.Amount.IsPositive() {
		return fmt.Sprintf("payment amount must be greater than zero, got %s", e.Amount.StringFixed(2))
	}
	return fmt.Sprintf("payment amount %s exceeds amount due %s", e.Amount.StringFixed(2), e.AmountDue.StringFixed(2))
}

// GatewayError wraps a failed call to the payment gateway
type GatewayError struct {
	Operation  string `json:"operation"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment gateway %s failed: %s", e.Operation, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
