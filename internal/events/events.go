package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Topics for domain events
const (
	TopicBookingCreated   = "booking.created"
	TopicBookingConfirmed = "booking.confirmed"
	TopicBookingCancelled = "booking.cancelled"
	TopicBookingCompleted = "booking.completed"
	TopicPaymentSucceeded = "payment.succeeded"
	TopicPaymentFailed    = "payment.failed"
)

// BookingEvent is published on every booking lifecycle change
type BookingEvent struct {
	BookingID         uuid.UUID       `json:"booking_id"`
	BookingReference  string          `json:"booking_reference"`
	TravelPackageID   uuid.UUID       `json:"travel_package_id"`
	TravelDate        string          `json:"travel_date"`
	NumberOfTravelers int             `json:"number_of_travelers"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	BookingStatus     string          `json:"booking_status"`
	UserID            *uuid.UUID      `json:"user_id,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

// PaymentEvent is published when a transaction settles or fails
type PaymentEvent struct {
	TransactionID        uuid.UUID       `json:"transaction_id"`
	TransactionReference string          `json:"transaction_reference"`
	BookingID            uuid.UUID       `json:"booking_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Status               string          `json:"status"`
	Source               string          `json:"source"`
	BookingAmountPaid    decimal.Decimal `json:"booking_amount_paid"`
	BookingAmountDue     decimal.Decimal `json:"booking_amount_due"`
	BookingPaymentStatus string          `json:"booking_payment_status"`
	FailureReason        string          `json:"failure_reason,omitempty"`
	OccurredAt           time.Time       `json:"occurred_at"`
}
