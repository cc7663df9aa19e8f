package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the state of a single payment attempt
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusSuccess    TransactionStatus = "success"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusRefunded   TransactionStatus = "refunded"
)

// TransactionType describes what a payment attempt is for
type TransactionType string

const (
	TransactionTypeFullPayment    TransactionType = "full_payment"
	TransactionTypePartialPayment TransactionType = "partial_payment"
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeRefund         TransactionType = "refund"
)

// IsValid reports whether t is a known transaction type
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeFullPayment, TransactionTypePartialPayment, TransactionTypeDeposit, TransactionTypeRefund:
		return true
	}
	return false
}

// DefaultCurrency is used when no currency is configured
const DefaultCurrency = "NGN"

// PaymentTransaction is one ledger row: a payment attempt against a booking
type PaymentTransaction struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	BookingID            uuid.UUID         `json:"booking_id" db:"booking_id"`
	UserID               *uuid.UUID        `json:"user_id,omitempty" db:"user_id"`
	TransactionReference string            `json:"transaction_reference" db:"transaction_reference"`
	GatewayReference     *string           `json:"gateway_reference,omitempty" db:"gateway_reference"`
	GatewayTransactionID *string           `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`
	Amount               decimal.Decimal   `json:"amount" db:"amount"`
	Currency             string            `json:"currency" db:"currency"`
	Type                 TransactionType   `json:"type" db:"type"`
	Status               TransactionStatus `json:"status" db:"status"`
	PaymentMethod        *string           `json:"payment_method,omitempty" db:"payment_method"`
	CardType             *string           `json:"card_type,omitempty" db:"card_type"`
	CardLast4            *string           `json:"card_last4,omitempty" db:"card_last4"`
	BankName             *string           `json:"bank_name,omitempty" db:"bank_name"`
	GatewayResponse      JSONB             `json:"gateway_response,omitempty" db:"gateway_response"`
	Metadata             JSONB             `json:"metadata,omitempty" db:"metadata"`
	FailureReason        *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	PaidAt               *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
	FailedAt             *time.Time        `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
}

// SettlementDetails carries what the gateway reported about a successful charge
type SettlementDetails struct {
	GatewayTransactionID string
	Channel              string
	CardType             string
	CardLast4            string
	Bank                 string
	ReportedAmount       *decimal.Decimal
	Currency             string
	PaidAt               *time.Time
	GatewayResponse      JSONB
}

// NewPaymentTransaction builds a pending ledger row
func NewPaymentTransaction(booking *Booking, amount decimal.Decimal, txType TransactionType, currency string, userID *uuid.UUID, now time.Time) *PaymentTransaction {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &PaymentTransaction{
		ID:        uuid.New(),
		BookingID: booking.ID,
		UserID:    userID,
		Amount:    amount.Round(2),
		Currency:  currency,
		Type:      txType,
		Status:    TransactionStatusPending,
		Metadata: JSONB{
			"booking_reference": booking.BookingReference,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsSettled reports whether the transaction has been credited
func (t PaymentTransaction) IsSettled() bool {
	return t.Status == TransactionStatusSuccess
}

// LookupReference returns the reference the gateway knows this transaction by
func (t PaymentTransaction) LookupReference() string {
	if t.GatewayReference != nil && *t.GatewayReference != "" {
		return *t.GatewayReference
	}
	return t.TransactionReference
}

func (t PaymentTransaction) transitionError(to TransactionStatus) error {
	return &InvalidTransitionError{Entity: "payment_transaction", From: string(t.Status), To: string(to)}
}

// Settle marks the transaction successful. Settling an already successful transaction
// returns it unchanged with changed=false. Pending, processing and failed transactions
// may settle; a failed transaction can settle when the gateway reports a late success.
func (t PaymentTransaction) Settle(details SettlementDetails, now time.Time) (PaymentTransaction, bool, error) {
	switch t.Status {
	case TransactionStatusSuccess:
		return t, false, nil
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusFailed:
	default:
		return t, false, t.transitionError(TransactionStatusSuccess)
	}

	t.Status = TransactionStatusSuccess
	paidAt := now
	if details.PaidAt != nil {
		paidAt = *details.PaidAt
	}
	t.PaidAt = &paidAt
	t.FailureReason = nil
	t.FailedAt = nil
	t.GatewayTransactionID = optionalString(details.GatewayTransactionID, t.GatewayTransactionID)
	t.PaymentMethod = optionalString(details.Channel, t.PaymentMethod)
	t.CardType = optionalString(details.CardType, t.CardType)
	t.CardLast4 = optionalString(details.CardLast4, t.CardLast4)
	t.BankName = optionalString(details.Bank, t.BankName)
	if details.GatewayResponse != nil {
		t.GatewayResponse = details.GatewayResponse
	}
	t.UpdatedAt = now
	return t, true, nil
}

// Fail marks a pending or processing transaction as failed. Failing an already failed
// transaction is a no-op; a successful transaction is never downgraded.
func (t PaymentTransaction) Fail(reason string, now time.Time) (PaymentTransaction, bool, error) {
	switch t.Status {
	case TransactionStatusFailed:
		return t, false, nil
	case TransactionStatusPending, TransactionStatusProcessing:
	default:
		return t, false, t.transitionError(TransactionStatusFailed)
	}

	t.Status = TransactionStatusFailed
	if reason != "" {
		t.FailureReason = &reason
	}
	t.FailedAt = &now
	t.UpdatedAt = now
	return t, true, nil
}

func optionalString(value string, fallback *string) *string {
	if value == "" {
		return fallback
	}
	return &value
}

// InitializePaymentRequest is the payload for starting a payment on a booking
type InitializePaymentRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Type   TransactionType  `json:"type,omitempty" binding:"omitempty,oneof=full_payment partial_payment deposit"`
	Email  string           `json:"email,omitempty" binding:"omitempty,email"`
}

// InitializePaymentResponse is returned after the gateway accepts a payment
type InitializePaymentResponse struct {
	Transaction      *PaymentTransaction `json:"transaction"`
	AuthorizationURL string              `json:"authorization_url"`
	AccessCode       string              `json:"access_code"`
	GatewayReference string              `json:"gateway_reference"`
}

// VerifyPaymentResponse is returned after polling the gateway for a payment
type VerifyPaymentResponse struct {
	Transaction   *PaymentTransaction `json:"transaction"`
	GatewayStatus string              `json:"gateway_status"`
	Booking       *Booking            `json:"booking,omitempty"`
}
