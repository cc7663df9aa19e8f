package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// CancellationNoticeDays is the number of days before travel after which cancellation is refused
const CancellationNoticeDays = 3

// Booking is a reservation of a travel package for a party on a travel date
type Booking struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	BookingReference   string          `json:"booking_reference" db:"booking_reference"`
	UserID             *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	TravelPackageID    uuid.UUID       `json:"travel_package_id" db:"travel_package_id"`
	TravelDate         time.Time       `json:"travel_date" db:"travel_date"`
	NumberOfAdults     int             `json:"number_of_adults" db:"number_of_adults"`
	NumberOfChildren   int             `json:"number_of_children" db:"number_of_children"`
	NumberOfTravelers  int             `json:"number_of_travelers" db:"number_of_travelers"`
	Subtotal           decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountAmount     decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	AmountPaid         decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	AmountDue          decimal.Decimal `json:"amount_due" db:"amount_due"`
	PaymentStatus      PaymentStatus   `json:"payment_status" db:"payment_status"`
	BookingStatus      BookingStatus   `json:"booking_status" db:"booking_status"`
	GuestFirstName     *string         `json:"guest_first_name,omitempty" db:"guest_first_name"`
	GuestLastName      *string         `json:"guest_last_name,omitempty" db:"guest_last_name"`
	GuestEmail         *string         `json:"guest_email,omitempty" db:"guest_email"`
	GuestPhone         *string         `json:"guest_phone,omitempty" db:"guest_phone"`
	SpecialRequests    *string         `json:"special_requests,omitempty" db:"special_requests"`
	CancellationReason *string         `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledBy        *uuid.UUID      `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`

	Travelers []Traveler `json:"travelers,omitempty" db:"-"`
}

// NewBooking builds a pending, unpaid booking from a priced party
func NewBooking(packageID uuid.UUID, travelDate time.Time, price *PriceBreakdown, userID *uuid.UUID, now time.Time) *Booking {
	return &Booking{
		ID:                uuid.New(),
		UserID:            userID,
		TravelPackageID:   packageID,
		TravelDate:        DateOnly(travelDate),
		NumberOfAdults:    price.NumberOfAdults,
		NumberOfChildren:  price.NumberOfChildren,
		NumberOfTravelers: price.NumberOfTravelers,
		Subtotal:          price.Subtotal,
		DiscountAmount:    price.DiscountAmount,
		TotalAmount:       price.TotalAmount,
		AmountPaid:        decimal.Zero,
		AmountDue:         price.TotalAmount,
		PaymentStatus:     PaymentStatusPending,
		BookingStatus:     BookingStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsGuest reports whether the booking was made without an account
func (b Booking) IsGuest() bool {
	return b.UserID == nil
}

// OwnedBy reports whether the booking belongs to the given user
func (b Booking) OwnedBy(userID uuid.UUID) bool {
	return b.UserID != nil && *b.UserID == userID
}

// ContactEmail returns the address payment receipts should go to
func (b Booking) ContactEmail() string {
	if b.GuestEmail != nil {
		return *b.GuestEmail
	}
	return ""
}

// IsTerminal reports whether no further lifecycle transitions are possible
func (b Booking) IsTerminal() bool {
	return b.BookingStatus == BookingStatusCancelled || b.BookingStatus == BookingStatusCompleted
}

func (b Booking) transitionError(to BookingStatus) error {
	return &InvalidTransitionError{Entity: "booking", From: string(b.BookingStatus), To: string(to)}
}

// Confirm moves a pending booking to confirmed
func (b Booking) Confirm(now time.Time) (Booking, error) {
	if b.BookingStatus != BookingStatusPending {
		return b, b.transitionError(BookingStatusConfirmed)
	}
	b.BookingStatus = BookingStatusConfirmed
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return b, nil
}

// Cancel moves a pending or confirmed booking to cancelled. The travel date must be
// more than CancellationNoticeDays calendar days away.
func (b Booking) Cancel(reason string, by *uuid.UUID, now time.Time) (Booking, error) {
	if b.BookingStatus != BookingStatusPending && b.BookingStatus != BookingStatusConfirmed {
		return b, b.transitionError(BookingStatusCancelled)
	}

	daysLeft := DaysBetween(now, b.TravelDate)
	if daysLeft <= CancellationNoticeDays {
		return b, &CancellationWindowError{DaysUntilTravel: daysLeft, MinimumDays: CancellationNoticeDays}
	}

	reason = strings.TrimSpace(reason)
	b.BookingStatus = BookingStatusCancelled
	if reason != "" {
		b.CancellationReason = &reason
	}
	b.CancelledBy = by
	b.CancelledAt = &now
	b.UpdatedAt = now
	return b, nil
}

// Complete moves a confirmed booking to completed
func (b Booking) Complete(now time.Time) (Booking, error) {
	if b.BookingStatus != BookingStatusConfirmed {
		return b, b.transitionError(BookingStatusCompleted)
	}
	b.BookingStatus = BookingStatusCompleted
	b.CompletedAt = &now
	b.UpdatedAt = now
	return b, nil
}

// CanAddTraveler checks that another traveler fits on the booking
func (b Booking) CanAddTraveler(current int) error {
	if b.IsTerminal() {
		return &InvalidTransitionError{Entity: "booking", From: string(b.BookingStatus), To: "traveler_added"}
	}
	if current >= b.NumberOfTravelers {
		return &CapacityExceededError{Scope: CapacityScopeBooking, Requested: 1, Remaining: 0}
	}
	return nil
}

// CanUpdateTraveler checks that traveler details may still be edited
func (b Booking) CanUpdateTraveler() error {
	if b.BookingStatus != BookingStatusPending {
		return &InvalidTransitionError{Entity: "booking", From: string(b.BookingStatus), To: "traveler_updated"}
	}
	return nil
}

// CanRemoveTraveler checks that travelers may still be removed
func (b Booking) CanRemoveTraveler() error {
	if b.BookingStatus != BookingStatusPending {
		return &InvalidTransitionError{Entity: "booking", From: string(b.BookingStatus), To: "traveler_removed"}
	}
	return nil
}

// ApplyLedgerTotal recomputes the payment projection from the sum of settled payments.
// Any amount above the booking total is returned as overpaid and not credited.
func (b Booking) ApplyLedgerTotal(settled decimal.Decimal, now time.Time) (Booking, decimal.Decimal) {
	paid := settled.Round(2)
	overpaid := decimal.Zero
	if paid.GreaterThan(b.TotalAmount) {
		overpaid = paid.Sub(b.TotalAmount)
		paid = b.TotalAmount
	}
	if paid.IsNegative() {
		paid = decimal.Zero
	}

	b.AmountPaid = paid
	b.AmountDue = b.TotalAmount.Sub(paid)

	switch {
	case b.AmountDue.IsZero():
		b.PaymentStatus = PaymentStatusPaid
	case paid.IsPositive():
		b.PaymentStatus = PaymentStatusPartial
	default:
		b.PaymentStatus = PaymentStatusPending
	}
	b.UpdatedAt = now
	return b, overpaid
}

// CreateBookingRequest is the payload for creating a booking
type CreateBookingRequest struct {
	TravelPackageID  uuid.UUID         `json:"travel_package_id" binding:"required"`
	TravelDate       string            `json:"travel_date" binding:"required"`
	NumberOfAdults   int               `json:"number_of_adults" binding:"min=0"`
	NumberOfChildren int               `json:"number_of_children" binding:"min=0"`
	Travelers        []TravelerRequest `json:"travelers,omitempty" binding:"omitempty,dive"`
	SpecialRequests  *string           `json:"special_requests,omitempty"`
	GuestFirstName   *string           `json:"guest_first_name,omitempty"`
	GuestLastName    *string           `json:"guest_last_name,omitempty"`
	GuestEmail       *string           `json:"guest_email,omitempty" binding:"omitempty,email"`
	GuestPhone       *string           `json:"guest_phone,omitempty"`
}

// CancelBookingRequest is the payload for cancelling a booking
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// BookingListResponse is a page of bookings. Total is only reported on the admin listing.
type BookingListResponse struct {
	Bookings []Booking `json:"bookings"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Count    int       `json:"count"`
	Total    int       `json:"total,omitempty"`
}

// BookingFilter narrows the admin booking listing; empty fields match everything
type BookingFilter struct {
	BookingStatus BookingStatus
	PaymentStatus PaymentStatus
}

// Validate rejects unknown status values
func (f BookingFilter) Validate() error {
	switch f.BookingStatus {
	case "", BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
	default:
		return NewValidationError("booking_status", "unknown booking status "+string(f.BookingStatus))
	}
	switch f.PaymentStatus {
	case "", PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
	default:
		return NewValidationError("payment_status", "unknown payment status "+string(f.PaymentStatus))
	}
	return nil
}
