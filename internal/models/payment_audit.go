package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated              PaymentEventType = "payment_initiated"
	PaymentEventGatewayResponse        PaymentEventType = "gateway_response"
	PaymentEventWebhookReceived        PaymentEventType = "webhook_received"
	PaymentEventVerificationRequest    PaymentEventType = "verification_request"
	PaymentEventVerificationResponse   PaymentEventType = "verification_response"
	PaymentEventSuccess                PaymentEventType = "payment_success"
	PaymentEventFailed                 PaymentEventType = "payment_failed"
	PaymentEventReconciliationMismatch PaymentEventType = "reconciliation_mismatch"
	PaymentEventOverpayment            PaymentEventType = "overpayment"
	PaymentEventUnknownTransaction     PaymentEventType = "unknown_transaction"
	PaymentEventCancelledBooking       PaymentEventType = "payment_on_cancelled_booking"
	PaymentEventError                  PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend         PaymentEventSource = "backend"
	PaymentSourcePaystackWebhook PaymentEventSource = "paystack_webhook"
	PaymentSourcePaystackAPI     PaymentEventSource = "paystack_api"
	PaymentSourceUser            PaymentEventSource = "user"
)

// PaymentAudit is an append-only log entry for a payment event
type PaymentAudit struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	BookingID            *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	TransactionID        *uuid.UUID `json:"transaction_id,omitempty" db:"transaction_id"`
	TransactionReference *string    `json:"transaction_reference,omitempty" db:"transaction_reference"`
	GatewayReference     *string    `json:"gateway_reference,omitempty" db:"gateway_reference"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	ExpectedAmount decimal.NullDecimal `json:"expected_amount" db:"expected_amount"`
	ReceivedAmount decimal.NullDecimal `json:"received_amount" db:"received_amount"`
	Currency       *string             `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool               `json:"amounts_match,omitempty" db:"amounts_match"`

	PaymentStatus        *string `json:"payment_status,omitempty" db:"payment_status"`
	GatewayTransactionID *string `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`

	RequestPayload  JSONB   `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	RawBody         *string `json:"raw_body,omitempty" db:"raw_body"`

	HTTPStatusCode *int    `json:"http_status_code,omitempty" db:"http_status_code"`
	HTTPMethod     *string `json:"http_method,omitempty" db:"http_method"`
	EndpointURL    *string `json:"endpoint_url,omitempty" db:"endpoint_url"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	ProcessingTimeMs *int    `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool    `json:"is_duplicate" db:"is_duplicate"`
	IdempotencyKey   *string `json:"idempotency_key,omitempty" db:"idempotency_key"`

	IPAddress     *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceInfo    JSONB   `json:"device_info,omitempty" db:"device_info"`
	CorrelationID *string `json:"correlation_id,omitempty" db:"correlation_id"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// ForTransaction links the entry to a ledger row and its booking
func (pa *PaymentAudit) ForTransaction(t *PaymentTransaction) *PaymentAudit {
	if t == nil {
		return pa
	}
	id, bookingID, ref := t.ID, t.BookingID, t.TransactionReference
	pa.TransactionID = &id
	pa.BookingID = &bookingID
	pa.TransactionReference = &ref
	pa.GatewayReference = t.GatewayReference
	status := string(t.Status)
	pa.PaymentStatus = &status
	return pa
}

// SetGatewayReference sets the reference reported by the gateway
func (pa *PaymentAudit) SetGatewayReference(ref string) *PaymentAudit {
	if ref != "" {
		pa.GatewayReference = &ref
	}
	return pa
}

// SetAmounts records expected and received amounts and returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received decimal.Decimal, currency string) bool {
	pa.ExpectedAmount = decimal.NewNullDecimal(expected)
	pa.ReceivedAmount = decimal.NewNullDecimal(received)
	pa.Currency = &currency

	match := expected.Round(2).Equal(received.Round(2))
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus sets the payment status from gateway
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetGatewayTransactionID sets the gateway's own transaction id
func (pa *PaymentAudit) SetGatewayTransactionID(id string) *PaymentAudit {
	if id != "" {
		pa.GatewayTransactionID = &id
	}
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetRawBody stores the raw body before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetHTTPDetails sets HTTP request/response details
func (pa *PaymentAudit) SetHTTPDetails(method string, url string, statusCode int) *PaymentAudit {
	pa.HTTPMethod = &method
	pa.EndpointURL = &url
	if statusCode != 0 {
		pa.HTTPStatusCode = &statusCode
	}
	return pa
}

// SetRequestPayload sets the request payload sent
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload sets the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(meta RequestMeta) *PaymentAudit {
	if meta.IPAddress != "" {
		pa.IPAddress = &meta.IPAddress
	}
	if meta.UserAgent != "" {
		pa.UserAgent = &meta.UserAgent
	}
	if meta.CorrelationID != "" {
		pa.CorrelationID = &meta.CorrelationID
	}
	return pa
}

// SetDeviceInfo stores the parsed user agent
func (pa *PaymentAudit) SetDeviceInfo(info map[string]interface{}) *PaymentAudit {
	pa.DeviceInfo = JSONB(info)
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	now := time.Now()
	pa.ProcessedAt = &now
	return pa
}

// MarkAsDuplicate marks this event as a re-delivery
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// SetIdempotencyKey sets the idempotency key
func (pa *PaymentAudit) SetIdempotencyKey(key string) *PaymentAudit {
	pa.IdempotencyKey = &key
	return pa
}
