package services

import (
	"context"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/bluelagoon/travel-booking-backend/internal/database"
	"github.com/bluelagoon/travel-booking-backend/internal/events"
	"github.com/bluelagoon/travel-booking-backend/internal/metrics"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SettlementResult describes the outcome of settling a transaction
type SettlementResult struct {
	Transaction    *models.PaymentTransaction
	Booking        *models.Booking
	AlreadySettled bool
	// Overpaid is the part of the ledger total above the booking total, not credited
	Overpaid decimal.Decimal
}

// LedgerService records payment attempts and keeps each booking's payment projection
// consistent with the ledger
type LedgerService struct {
	store     database.Store
	auditor   PaymentAuditor
	publisher EventPublisher
	cfg       config.BookingConfig
	currency  string
	logger    *logrus.Logger
	now       func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(store database.Store, auditor PaymentAuditor, publisher EventPublisher, cfg config.BookingConfig, currency string, logger *logrus.Logger) *LedgerService {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &LedgerService{
		store:     store,
		auditor:   auditor,
		publisher: publisher,
		cfg:       cfg,
		currency:  currency,
		logger:    logger,
		now:       utcNow,
	}
}

// Open inserts a pending transaction against a booking. The amount must be positive
// and no more than the amount still due.
func (s *LedgerService) Open(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal, txType models.TransactionType, actor *models.Actor) (*models.PaymentTransaction, error) {
	if !txType.IsValid() || txType == models.TransactionTypeRefund {
		return nil, models.NewValidationError("type", "must be full_payment, partial_payment or deposit")
	}

	var txn *models.PaymentTransaction
	err := runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, "open_transaction", func(tx database.Tx) error {
		booking, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.BookingStatus == models.BookingStatusCancelled {
			return models.ErrBookingCancelled
		}
		if booking.PaymentStatus == models.PaymentStatusPaid || !booking.AmountDue.IsPositive() {
			return models.ErrBookingAlreadyPaid
		}
		if !amount.IsPositive() || amount.GreaterThan(booking.AmountDue) {
			return &models.InvalidAmountError{Amount: amount, AmountDue: booking.AmountDue}
		}

		now := s.now()
		txn = models.NewPaymentTransaction(booking, amount, txType, s.currency, actor.IDPtr(), now)
		ref, err := generateReference(ctx, "transaction", now, s.cfg.MaxReferenceAttempts, s.logger,
			utils.NewTransactionReference, tx.TransactionReferenceExists)
		if err != nil {
			return err
		}
		txn.TransactionReference = ref
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	metrics.ObservePaymentTransition(string(models.TransactionStatusPending), string(models.PaymentSourceBackend))
	s.logger.WithFields(logrus.Fields{
		"transaction_reference": txn.TransactionReference,
		"booking_id":            bookingID,
		"amount":                txn.Amount.StringFixed(2),
		"type":                  txn.Type,
	}).Info("Payment transaction opened")

	return txn, nil
}

// Settle marks a transaction successful and recomputes the owning booking from the
// ledger in the same database transaction. Settling an already successful transaction
// is a no-op that reports AlreadySettled.
func (s *LedgerService) Settle(ctx context.Context, reference string, details models.SettlementDetails, source models.PaymentEventSource) (*SettlementResult, error) {
	var result *SettlementResult
	err := runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, "settle_transaction", func(tx database.Tx) error {
		result = nil

		txn, err := tx.GetTransactionForUpdate(ctx, reference)
		if err != nil {
			return err
		}

		now := s.now()
		settled, changed, err := txn.Settle(details, now)
		if err != nil {
			return err
		}

		booking, err := tx.GetBookingForUpdate(ctx, txn.BookingID)
		if err != nil {
			return err
		}

		if !changed {
			result = &SettlementResult{Transaction: &settled, Booking: booking, AlreadySettled: true}
			return nil
		}

		if err := tx.UpdateTransaction(ctx, &settled); err != nil {
			return err
		}

		total, err := tx.SumSettledPayments(ctx, booking.ID)
		if err != nil {
			return err
		}
		updated, overpaid := booking.ApplyLedgerTotal(total, now)
		if err := tx.UpdateBookingFinancials(ctx, &updated); err != nil {
			return err
		}

		result = &SettlementResult{Transaction: &settled, Booking: &updated, Overpaid: overpaid}
		return nil
	})
	if err != nil {
		return nil, err
	}

	txn := result.Transaction
	if result.AlreadySettled {
		s.logger.WithField("transaction_reference", txn.TransactionReference).Info("Transaction already settled, skipping")
		return result, nil
	}

	metrics.ObservePaymentTransition(string(models.TransactionStatusSuccess), string(source))
	s.logger.WithFields(logrus.Fields{
		"transaction_reference": txn.TransactionReference,
		"booking_id":            result.Booking.ID,
		"amount":                txn.Amount.StringFixed(2),
		"amount_paid":           result.Booking.AmountPaid.StringFixed(2),
		"amount_due":            result.Booking.AmountDue.StringFixed(2),
		"payment_status":        result.Booking.PaymentStatus,
		"source":                source,
	}).Info("Payment settled")

	s.auditSettlement(ctx, result, details, source)
	publish(ctx, s.publisher, s.logger, events.TopicPaymentSucceeded, paymentEvent(txn, result.Booking, source))
	return result, nil
}

func (s *LedgerService) auditSettlement(ctx context.Context, result *SettlementResult, details models.SettlementDetails, source models.PaymentEventSource) {
	txn := result.Transaction

	success := models.NewPaymentAudit(models.PaymentEventSuccess, source).
		ForTransaction(txn).
		SetGatewayTransactionID(details.GatewayTransactionID)
	if details.ReportedAmount != nil {
		currency := details.Currency
		if currency == "" {
			currency = txn.Currency
		}
		if !success.SetAmounts(txn.Amount, *details.ReportedAmount, currency) {
			s.logger.WithFields(logrus.Fields{
				"transaction_reference": txn.TransactionReference,
				"expected":              txn.Amount.StringFixed(2),
				"received":              details.ReportedAmount.StringFixed(2),
			}).Warn("Gateway amount does not match ledger amount")

			mismatch := models.NewPaymentAudit(models.PaymentEventReconciliationMismatch, source).ForTransaction(txn)
			mismatch.SetAmounts(txn.Amount, *details.ReportedAmount, currency)
			mismatch.SetError("gateway reported a different amount; ledger amount credited")
			writeAudit(ctx, s.auditor, s.logger, mismatch)
		}
	}
	writeAudit(ctx, s.auditor, s.logger, success)

	if result.Booking.BookingStatus == models.BookingStatusCancelled {
		s.logger.WithFields(logrus.Fields{
			"booking_id":            result.Booking.ID,
			"transaction_reference": txn.TransactionReference,
			"amount":                txn.Amount.StringFixed(2),
		}).Warn("Payment settled on a cancelled booking, refund required")

		cancelled := models.NewPaymentAudit(models.PaymentEventCancelledBooking, source).ForTransaction(txn)
		cancelled.SetAmounts(txn.Amount, txn.Amount, txn.Currency)
		cancelled.SetError("booking was cancelled before the payment settled; refund required")
		writeAudit(ctx, s.auditor, s.logger, cancelled)
	}

	if result.Overpaid.IsPositive() {
		s.logger.WithFields(logrus.Fields{
			"booking_id": result.Booking.ID,
			"overpaid":   result.Overpaid.StringFixed(2),
		}).Warn("Booking overpaid, excess not credited")

		overpayment := models.NewPaymentAudit(models.PaymentEventOverpayment, source).ForTransaction(txn)
		overpayment.SetAmounts(result.Booking.TotalAmount, result.Booking.TotalAmount.Add(result.Overpaid), txn.Currency)
		writeAudit(ctx, s.auditor, s.logger, overpayment)
	}
}

// Fail marks a pending or processing transaction as failed. A failed transaction stays
// failed; a successful one is never downgraded. The booking is not touched.
func (s *LedgerService) Fail(ctx context.Context, reference, reason string, source models.PaymentEventSource) (*models.PaymentTransaction, bool, error) {
	var failed models.PaymentTransaction
	var changed bool
	err := runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, "fail_transaction", func(tx database.Tx) error {
		txn, err := tx.GetTransactionForUpdate(ctx, reference)
		if err != nil {
			return err
		}

		failed, changed, err = txn.Fail(reason, s.now())
		if err != nil || !changed {
			return err
		}
		return tx.UpdateTransaction(ctx, &failed)
	})
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return &failed, false, nil
	}

	metrics.ObservePaymentTransition(string(models.TransactionStatusFailed), string(source))
	s.logger.WithFields(logrus.Fields{
		"transaction_reference": failed.TransactionReference,
		"reason":                reason,
		"source":                source,
	}).Info("Payment failed")

	audit := models.NewPaymentAudit(models.PaymentEventFailed, source).ForTransaction(&failed)
	if reason != "" {
		audit.SetError(reason)
	}
	writeAudit(ctx, s.auditor, s.logger, audit)

	publish(ctx, s.publisher, s.logger, events.TopicPaymentFailed, paymentEvent(&failed, nil, source))
	return &failed, true, nil
}

// AttachGatewayReference stores the gateway's reference and initialization response
func (s *LedgerService) AttachGatewayReference(ctx context.Context, txn *models.PaymentTransaction, gatewayReference string, response models.JSONB) error {
	if err := s.store.AttachGatewayReference(ctx, txn.ID, gatewayReference, response); err != nil {
		return err
	}
	txn.GatewayReference = &gatewayReference
	txn.GatewayResponse = response
	return nil
}

// Get returns a transaction by internal or gateway reference
func (s *LedgerService) Get(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	return s.store.GetTransaction(ctx, reference)
}

// ListForBooking returns every transaction recorded against a booking
func (s *LedgerService) ListForBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentTransaction, error) {
	return s.store.ListTransactions(ctx, bookingID)
}

func paymentEvent(txn *models.PaymentTransaction, booking *models.Booking, source models.PaymentEventSource) events.PaymentEvent {
	e := events.PaymentEvent{
		TransactionID:        txn.ID,
		TransactionReference: txn.TransactionReference,
		BookingID:            txn.BookingID,
		Amount:               txn.Amount,
		Currency:             txn.Currency,
		Status:               string(txn.Status),
		Source:               string(source),
		OccurredAt:           txn.UpdatedAt,
	}
	if txn.FailureReason != nil {
		e.FailureReason = *txn.FailureReason
	}
	if booking != nil {
		e.BookingAmountPaid = booking.AmountPaid
		e.BookingAmountDue = booking.AmountDue
		e.BookingPaymentStatus = string(booking.PaymentStatus)
	}
	return e
}
