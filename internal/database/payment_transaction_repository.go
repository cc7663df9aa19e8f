package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PaymentTransactionRepository handles ledger rows
type PaymentTransactionRepository struct {
	q querier
}

// NewPaymentTransactionRepository creates a new PaymentTransactionRepository
func NewPaymentTransactionRepository(db *sqlx.DB) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{q: db}
}

const transactionColumns = `
	id, booking_id, user_id, transaction_reference, gateway_reference, gateway_transaction_id,
	amount, currency, type, status, payment_method, card_type, card_last4, bank_name,
	gateway_response, metadata, failure_reason, paid_at, failed_at, created_at, updated_at`

// TransactionReferenceExists checks whether a transaction reference is already taken
func (r *PaymentTransactionRepository) TransactionReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int
	err := r.q.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM payment_transactions WHERE transaction_reference = $1`, reference)
	if err != nil {
		return false, fmt.Errorf("failed to check reference uniqueness: %w", err)
	}
	return count > 0, nil
}

// InsertTransaction inserts a new ledger row
func (r *PaymentTransactionRepository) InsertTransaction(ctx context.Context, t *models.PaymentTransaction) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payment_transactions (
			id, booking_id, user_id, transaction_reference, gateway_reference,
			amount, currency, type, status, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.BookingID, t.UserID, t.TransactionReference, t.GatewayReference,
		t.Amount, t.Currency, t.Type, t.Status, t.Metadata, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment transaction: %w", classifyError(err))
	}
	return nil
}

func (r *PaymentTransactionRepository) getTransaction(ctx context.Context, query string, args ...interface{}) (*models.PaymentTransaction, error) {
	txn := &models.PaymentTransaction{}
	if err := r.q.GetContext(ctx, txn, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment transaction: %w", classifyError(err))
	}
	return txn, nil
}

// GetTransaction retrieves a transaction by internal or gateway reference
func (r *PaymentTransactionRepository) GetTransaction(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	return r.getTransaction(ctx, `
		SELECT `+transactionColumns+`
		FROM payment_transactions
		WHERE transaction_reference = $1 OR gateway_reference = $1
		LIMIT 1`, reference)
}

// GetTransactionForUpdate retrieves a transaction by internal or gateway reference and locks the row
func (r *PaymentTransactionRepository) GetTransactionForUpdate(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	return r.getTransaction(ctx, `
		SELECT `+transactionColumns+`
		FROM payment_transactions
		WHERE transaction_reference = $1 OR gateway_reference = $1
		LIMIT 1
		FOR UPDATE`, reference)
}

// ListTransactions returns all ledger rows for a booking, oldest first
func (r *PaymentTransactionRepository) ListTransactions(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentTransaction, error) {
	txns := []models.PaymentTransaction{}
	err := r.q.SelectContext(ctx, &txns, `
		SELECT `+transactionColumns+`
		FROM payment_transactions
		WHERE booking_id = $1
		ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	return txns, nil
}

// UpdateTransaction persists a status change and the settlement metadata
func (r *PaymentTransactionRepository) UpdateTransaction(ctx context.Context, t *models.PaymentTransaction) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = $1,
		    gateway_transaction_id = $2,
		    payment_method = $3,
		    card_type = $4,
		    card_last4 = $5,
		    bank_name = $6,
		    gateway_response = $7,
		    failure_reason = $8,
		    paid_at = $9,
		    failed_at = $10,
		    updated_at = $11
		WHERE id = $12`,
		t.Status, t.GatewayTransactionID, t.PaymentMethod, t.CardType, t.CardLast4, t.BankName,
		t.GatewayResponse, t.FailureReason, t.PaidAt, t.FailedAt, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment transaction: %w", classifyError(err))
	}
	return expectOneRow(res, models.ErrTransactionNotFound)
}

// AttachGatewayReference records the gateway's reference and initialization response
func (r *PaymentTransactionRepository) AttachGatewayReference(ctx context.Context, transactionID uuid.UUID, gatewayReference string, response models.JSONB) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE payment_transactions
		SET gateway_reference = $1,
		    gateway_response = $2,
		    updated_at = $3
		WHERE id = $4`,
		gatewayReference, response, time.Now(), transactionID)
	if err != nil {
		return fmt.Errorf("failed to attach gateway reference: %w", classifyError(err))
	}
	return expectOneRow(res, models.ErrTransactionNotFound)
}

// SumSettledPayments returns the total of successful non-refund transactions for a booking
func (r *PaymentTransactionRepository) SumSettledPayments(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payment_transactions
		WHERE booking_id = $1
		  AND status = 'success'
		  AND type <> 'refund'`, bookingID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum settled payments: %w", err)
	}
	return total, nil
}
