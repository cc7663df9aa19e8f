package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BookingReader loads bookings for ownership checks
type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// PaymentService opens checkouts with the gateway and polls it for results. Every state
// change goes through the ledger.
type PaymentService struct {
	bookings BookingReader
	ledger   *LedgerService
	gateway  PaymentGateway
	auditor  PaymentAuditor
	config   *config.PaystackConfig
	logger   *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(bookings BookingReader, ledger *LedgerService, gateway PaymentGateway, auditor PaymentAuditor, cfg *config.PaystackConfig, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		bookings: bookings,
		ledger:   ledger,
		gateway:  gateway,
		auditor:  auditor,
		config:   cfg,
		logger:   logger,
	}
}

// ============================================================================
// INITIALIZE
// ============================================================================

// Initialize opens a pending transaction and a gateway checkout for it. The gateway is
// called outside any database transaction; if it rejects the checkout the transaction
// is failed.
func (s *PaymentService) Initialize(ctx context.Context, bookingID uuid.UUID, req *models.InitializePaymentRequest, actor *models.Actor, meta models.RequestMeta) (*models.InitializePaymentResponse, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(booking, actor); err != nil {
		return nil, err
	}
	if booking.BookingStatus == models.BookingStatusCancelled {
		return nil, models.ErrBookingCancelled
	}
	if booking.PaymentStatus == models.PaymentStatusPaid {
		return nil, models.ErrBookingAlreadyPaid
	}

	amount := booking.AmountDue
	if req.Amount != nil {
		amount = req.Amount.Round(2)
	}
	txType := req.Type
	if txType == "" {
		txType = models.TransactionTypePartialPayment
		if amount.Equal(booking.AmountDue) {
			txType = models.TransactionTypeFullPayment
		}
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = booking.ContactEmail()
	}
	if email == "" && actor != nil {
		email = actor.Email
	}
	if email == "" {
		return nil, models.NewValidationError("email", "an email address is required for payment")
	}

	txn, err := s.ledger.Open(ctx, booking.ID, amount, txType, actor)
	if err != nil {
		return nil, err
	}

	gatewayReq := &GatewayInitializeRequest{
		Email:       email,
		Amount:      txn.Amount,
		Reference:   txn.TransactionReference,
		Currency:    txn.Currency,
		CallbackURL: s.config.CallbackURL,
		Metadata: map[string]interface{}{
			"booking_id":        booking.ID.String(),
			"booking_reference": booking.BookingReference,
			"transaction_id":    txn.ID.String(),
			"transaction_type":  string(txn.Type),
		},
	}

	start := time.Now()
	initiated := s.newAudit(models.PaymentEventInitiated, models.PaymentSourceBackend, txn, meta).
		SetHTTPDetails("POST", s.config.BaseURL+"/transaction/initialize", 0).
		SetRequestPayload(map[string]interface{}{
			"email":        email,
			"amount":       ToKobo(txn.Amount),
			"reference":    txn.TransactionReference,
			"currency":     txn.Currency,
			"callback_url": s.config.CallbackURL,
		})
	writeAudit(ctx, s.auditor, s.logger, initiated)

	result, err := s.gateway.Initialize(ctx, gatewayReq)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"transaction_reference": txn.TransactionReference,
			"booking_id":            booking.ID,
		}).Error("Gateway rejected payment initialization")

		failure := s.newAudit(models.PaymentEventError, models.PaymentSourcePaystackAPI, txn, meta).
			SetError(err.Error()).
			SetProcessingTime(start)
		writeAudit(ctx, s.auditor, s.logger, failure)

		if _, _, failErr := s.ledger.Fail(ctx, txn.TransactionReference, "gateway initialization failed", models.PaymentSourceBackend); failErr != nil {
			s.logger.WithError(failErr).WithField("transaction_reference", txn.TransactionReference).Error("Failed to mark transaction as failed")
		}
		return nil, asGatewayError("initialize", err)
	}

	if err := s.ledger.AttachGatewayReference(ctx, txn, result.Reference, result.Raw); err != nil {
		return nil, err
	}

	response := s.newAudit(models.PaymentEventGatewayResponse, models.PaymentSourcePaystackAPI, txn, meta).
		SetResponsePayload(result.Raw).
		SetProcessingTime(start)
	writeAudit(ctx, s.auditor, s.logger, response)

	s.logger.WithFields(logrus.Fields{
		"transaction_reference": txn.TransactionReference,
		"gateway_reference":     result.Reference,
		"booking_id":            booking.ID,
		"amount":                txn.Amount.StringFixed(2),
	}).Info("Payment initialized")

	return &models.InitializePaymentResponse{
		Transaction:      txn,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		GatewayReference: result.Reference,
	}, nil
}

// ============================================================================
// VERIFY
// ============================================================================

// Verify asks the gateway for the state of a transaction and applies it through the
// ledger. It is safe to call after the webhook has already settled the transaction.
func (s *PaymentService) Verify(ctx context.Context, reference string, actor *models.Actor, meta models.RequestMeta) (*models.VerifyPaymentResponse, error) {
	txn, err := s.ledger.Get(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetBooking(ctx, txn.BookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(booking, actor); err != nil {
		return nil, err
	}

	start := time.Now()
	lookup := txn.LookupReference()
	request := s.newAudit(models.PaymentEventVerificationRequest, models.PaymentSourceUser, txn, meta).
		SetHTTPDetails("GET", s.config.BaseURL+"/transaction/verify/"+lookup, 0)
	writeAudit(ctx, s.auditor, s.logger, request)

	verification, err := s.gateway.Verify(ctx, lookup)
	if err != nil {
		failure := s.newAudit(models.PaymentEventError, models.PaymentSourcePaystackAPI, txn, meta).
			SetError(err.Error()).
			SetProcessingTime(start)
		writeAudit(ctx, s.auditor, s.logger, failure)
		return nil, asGatewayError("verify", err)
	}

	response := s.newAudit(models.PaymentEventVerificationResponse, models.PaymentSourcePaystackAPI, txn, meta).
		SetGatewayTransactionID(verification.GatewayTransactionID).
		SetPaymentStatus(verification.Status).
		SetResponsePayload(verification.Raw).
		SetProcessingTime(start)
	writeAudit(ctx, s.auditor, s.logger, response)

	switch verification.Status {
	case "success":
		settled, err := s.ledger.Settle(ctx, txn.TransactionReference, verification.SettlementDetails(), models.PaymentSourcePaystackAPI)
		if err != nil {
			return nil, err
		}
		txn, booking = settled.Transaction, settled.Booking

	case "failed", "reversed":
		failed, _, err := s.ledger.Fail(ctx, txn.TransactionReference, verification.GatewayResponse, models.PaymentSourcePaystackAPI)
		var transitionErr *models.InvalidTransitionError
		switch {
		case errors.As(err, &transitionErr):
			// already settled; a late failure report never downgrades it
			s.logger.WithField("transaction_reference", txn.TransactionReference).Warn("Gateway reported failure for a settled transaction")
			if current, getErr := s.ledger.Get(ctx, txn.TransactionReference); getErr == nil {
				txn = current
			}
		case err != nil:
			return nil, err
		default:
			txn = failed
		}

	default:
		s.logger.WithFields(logrus.Fields{
			"transaction_reference": txn.TransactionReference,
			"gateway_status":        verification.Status,
		}).Info("Payment not final yet, leaving transaction unchanged")
	}

	return &models.VerifyPaymentResponse{
		Transaction:   txn,
		GatewayStatus: verification.Status,
		Booking:       booking,
	}, nil
}

// ListForBooking returns a booking's transactions to its owner
func (s *PaymentService) ListForBooking(ctx context.Context, bookingID uuid.UUID, actor *models.Actor) ([]models.PaymentTransaction, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(booking, actor); err != nil {
		return nil, err
	}
	return s.ledger.ListForBooking(ctx, bookingID)
}

func (s *PaymentService) newAudit(eventType models.PaymentEventType, source models.PaymentEventSource, txn *models.PaymentTransaction, meta models.RequestMeta) *models.PaymentAudit {
	audit := models.NewPaymentAudit(eventType, source).ForTransaction(txn).SetMetadata(meta)
	if meta.UserAgent != "" {
		audit.SetDeviceInfo(utils.ParseUserAgent(meta.UserAgent).ToMap())
	}
	return audit
}

func asGatewayError(operation string, err error) error {
	var gatewayErr *models.GatewayError
	if errors.As(err, &gatewayErr) {
		return err
	}
	return &models.GatewayError{Operation: operation, Message: err.Error(), Err: err}
}
