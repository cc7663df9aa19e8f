package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends a payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, transaction_id, transaction_reference, gateway_reference,
			event_type, event_source,
			expected_amount, received_amount, currency, amounts_match,
			payment_status, gateway_transaction_id,
			request_payload, response_payload, raw_body,
			http_status_code, http_method, endpoint_url,
			error_message, processing_time_ms, is_duplicate, idempotency_key,
			ip_address, user_agent, device_info, correlation_id,
			created_at, processed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12, $13,
			$14, $15, $16,
			$17, $18, $19,
			$20, $21, $22, $23,
			$24, $25, $26, $27,
			$28, $29
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.TransactionID, audit.TransactionReference, audit.GatewayReference,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.PaymentStatus, audit.GatewayTransactionID,
		audit.RequestPayload, audit.ResponsePayload, audit.RawBody,
		audit.HTTPStatusCode, audit.HTTPMethod, audit.EndpointURL,
		audit.ErrorMessage, audit.ProcessingTimeMs, audit.IsDuplicate, audit.IdempotencyKey,
		audit.IPAddress, audit.UserAgent, audit.DeviceInfo, audit.CorrelationID,
		audit.CreatedAt, audit.ProcessedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":            audit.EventType,
			"transaction_reference": audit.TransactionReference,
		}).Error("Failed to write payment audit entry")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// ListByReference retrieves all audit entries for a transaction, by internal or gateway reference
func (r *PaymentAuditRepository) ListByReference(ctx context.Context, reference string) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	query := `
		SELECT * FROM payment_audits
		WHERE transaction_reference = $1 OR gateway_reference = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, reference); err != nil {
		return nil, fmt.Errorf("failed to get audits by reference: %w", err)
	}
	return audits, nil
}

// GetAmountMismatches retrieves the most recent entries where gateway and ledger amounts differ
func (r *PaymentAuditRepository) GetAmountMismatches(ctx context.Context, limit int) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	query := `
		SELECT * FROM payment_audits
		WHERE amounts_match = FALSE
		ORDER BY created_at DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &audits, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get amount mismatches: %w", err)
	}
	return audits, nil
}
