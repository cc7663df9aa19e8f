package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/metrics"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Webhook events acted upon
const (
	WebhookEventChargeSuccess = "charge.success"
	WebhookEventChargeFailed  = "charge.failed"
)

// Webhook outcomes, all acknowledged to the gateway
const (
	WebhookOutcomeProcessed      = "processed"
	WebhookOutcomeAlreadyApplied = "already_applied"
	WebhookOutcomeDuplicate      = "duplicate"
	WebhookOutcomeUnknown        = "unknown_transaction"
	WebhookOutcomeIgnored        = "ignored"
)

// WebhookDeduper remembers processed deliveries
type WebhookDeduper interface {
	Seen(ctx context.Context, event, reference string) bool
	MarkProcessed(ctx context.Context, event, reference string)
}

// WebhookResult is what was done with one delivery
type WebhookResult struct {
	Event     string `json:"event"`
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
}

type webhookPayload struct {
	Event string         `json:"event"`
	Data  PaystackCharge `json:"data"`
}

// WebhookService reconciles gateway notifications into the ledger
type WebhookService struct {
	ledger   *LedgerService
	verifier SignatureVerifier
	deduper  WebhookDeduper
	auditor  PaymentAuditor
	logger   *logrus.Logger
}

// NewWebhookService creates a new WebhookService. deduper may be nil.
func NewWebhookService(ledger *LedgerService, verifier SignatureVerifier, deduper WebhookDeduper, auditor PaymentAuditor, logger *logrus.Logger) *WebhookService {
	return &WebhookService{
		ledger:   ledger,
		verifier: verifier,
		deduper:  deduper,
		auditor:  auditor,
		logger:   logger,
	}
}

// Handle authenticates and applies one webhook delivery. A returned error means the
// gateway should retry; anything acknowledged comes back as a result.
func (s *WebhookService) Handle(ctx context.Context, body []byte, signature string, meta models.RequestMeta) (*WebhookResult, error) {
	start := time.Now()

	if err := s.verifier.VerifySignature(body, signature); err != nil {
		metrics.ObserveWebhook("unknown", "invalid_signature")
		s.logger.WithFields(logrus.Fields{
			"ip_address": meta.IPAddress,
			"body_size":  len(body),
		}).Warn("Rejected webhook with invalid signature")
		return nil, models.ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.ObserveWebhook("unknown", "malformed")
		return nil, models.NewValidationError("body", "malformed webhook payload")
	}
	var raw models.JSONB
	_ = json.Unmarshal(body, &raw)

	result := &WebhookResult{Event: payload.Event, Reference: payload.Data.Reference}
	if result.Reference == "" {
		metrics.ObserveWebhook(payload.Event, "malformed")
		return nil, models.NewValidationError("data.reference", "is required")
	}

	log := s.logger.WithFields(logrus.Fields{
		"event":     payload.Event,
		"reference": result.Reference,
	})

	received := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourcePaystackWebhook).
		SetGatewayReference(result.Reference).
		SetPaymentStatus(payload.Data.Status).
		SetRawBody(string(body)).
		SetMetadata(meta).
		SetIdempotencyKey(payload.Event + ":" + result.Reference)

	if s.deduper != nil && s.deduper.Seen(ctx, payload.Event, result.Reference) {
		writeAudit(ctx, s.auditor, s.logger, received.MarkAsDuplicate().SetProcessingTime(start))
		metrics.ObserveWebhook(payload.Event, WebhookOutcomeDuplicate)
		log.Info("Webhook already processed, acknowledging")
		result.Outcome = WebhookOutcomeDuplicate
		return result, nil
	}
	writeAudit(ctx, s.auditor, s.logger, received)

	var err error
	switch payload.Event {
	case WebhookEventChargeSuccess:
		result.Outcome, err = s.settle(ctx, &payload.Data, raw)
	case WebhookEventChargeFailed:
		result.Outcome, err = s.fail(ctx, &payload.Data)
	default:
		log.Debug("Ignoring webhook event")
		result.Outcome = WebhookOutcomeIgnored
	}

	if errors.Is(err, models.ErrTransactionNotFound) {
		log.Warn("Webhook for unknown transaction, acknowledging")
		unknown := models.NewPaymentAudit(models.PaymentEventUnknownTransaction, models.PaymentSourcePaystackWebhook).
			SetGatewayReference(result.Reference).
			SetMetadata(meta).
			SetError("no transaction matches the webhook reference")
		writeAudit(ctx, s.auditor, s.logger, unknown)
		result.Outcome, err = WebhookOutcomeUnknown, nil
	}
	if err != nil {
		metrics.ObserveWebhook(payload.Event, "error")
		log.WithError(err).Error("Failed to process webhook")
		return nil, err
	}

	if s.deduper != nil {
		s.deduper.MarkProcessed(ctx, payload.Event, result.Reference)
	}
	metrics.ObserveWebhook(payload.Event, result.Outcome)
	log.WithFields(logrus.Fields{
		"outcome":     result.Outcome,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Webhook processed")
	return result, nil
}

func (s *WebhookService) settle(ctx context.Context, charge *PaystackCharge, raw models.JSONB) (string, error) {
	details := charge.Verification(raw).SettlementDetails()
	settled, err := s.ledger.Settle(ctx, charge.Reference, details, models.PaymentSourcePaystackWebhook)
	if err != nil {
		return "", err
	}
	if settled.AlreadySettled {
		return WebhookOutcomeAlreadyApplied, nil
	}
	return WebhookOutcomeProcessed, nil
}

func (s *WebhookService) fail(ctx context.Context, charge *PaystackCharge) (string, error) {
	reason := charge.GatewayResponse
	if reason == "" {
		reason = "charge failed"
	}

	_, changed, err := s.ledger.Fail(ctx, charge.Reference, reason, models.PaymentSourcePaystackWebhook)
	var transitionErr *models.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		s.logger.WithField("reference", charge.Reference).Warn("charge.failed received for a settled transaction, ignoring")
		return WebhookOutcomeAlreadyApplied, nil
	}
	if err != nil {
		return "", err
	}
	if !changed {
		return WebhookOutcomeAlreadyApplied, nil
	}
	return WebhookOutcomeProcessed, nil
}
