package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/database"
	"github.com/bluelagoon/travel-booking-backend/internal/metrics"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// EventPublisher publishes domain events for downstream collaborators such as notifications
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// PaymentAuditor appends entries to the payment audit log
type PaymentAuditor interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// utcNow is the service clock; calendar rules are evaluated on UTC dates
func utcNow() time.Time {
	return time.Now().UTC()
}

// runInTx runs fn in a store transaction, retrying from scratch on serialization
// failures and duplicate references up to attempts times
func runInTx(ctx context.Context, store database.Store, attempts int, logger *logrus.Logger, operation string, fn func(tx database.Tx) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = store.WithTx(ctx, fn)
		if err == nil || !database.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		metrics.IncTransactionRetry(operation)
		logger.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt,
		}).Warn("Retrying transaction")
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, err)
}

// generateReference draws candidate references until one is unused
func generateReference(ctx context.Context, kind string, now time.Time, maxAttempts int, logger *logrus.Logger,
	generate func(time.Time) (string, error), exists func(context.Context, string) (bool, error)) (string, error) {

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ref, err := generate(now)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}

		metrics.IncReferenceCollision(kind)
		logger.WithFields(logrus.Fields{
			"kind":      kind,
			"reference": ref,
			"attempt":   attempt,
		}).Warn("Generated reference already exists, retrying")
	}
	return "", fmt.Errorf("%s reference: %w", kind, models.ErrReferenceExhausted)
}

// authorizeBooking enforces ownership: a booking with an owner is visible to that
// owner and to admins; a guest booking is reachable by anyone holding its id
func authorizeBooking(booking *models.Booking, actor *models.Actor) error {
	if booking.UserID == nil {
		return nil
	}
	if actor == nil {
		return models.ErrForbidden
	}
	if booking.OwnedBy(actor.UserID) || actor.IsAdmin() {
		return nil
	}
	return models.ErrForbidden
}

func publish(ctx context.Context, publisher EventPublisher, logger *logrus.Logger, topic string, payload interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, topic, payload); err != nil {
		logger.WithError(err).WithField("topic", topic).Error("Failed to publish domain event")
	}
}

func writeAudit(ctx context.Context, auditor PaymentAuditor, logger *logrus.Logger, audit *models.PaymentAudit) {
	if auditor == nil || audit == nil {
		return
	}
	if err := auditor.Log(ctx, audit); err != nil {
		logger.WithError(err).WithField("event_type", audit.EventType).Warn("Payment audit entry was not written")
	}
}
