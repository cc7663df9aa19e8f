package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const webhookKeyPrefix = "paystack:webhook:"

// WebhookDeduplicator remembers processed webhook deliveries so redeliveries can be
// acknowledged without touching the database. The ledger's own idempotency remains
// authoritative; a nil deduplicator or a Redis outage only disables the shortcut.
type WebhookDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewWebhookDeduplicator creates a deduplicator. A nil client yields a no-op deduplicator.
func NewWebhookDeduplicator(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *WebhookDeduplicator {
	if client == nil {
		return nil
	}
	return &WebhookDeduplicator{client: client, ttl: ttl, logger: logger}
}

// WebhookKey builds the Redis key for an event and reference
func WebhookKey(event, reference string) string {
	return fmt.Sprintf("%s%s:%s", webhookKeyPrefix, event, reference)
}

// Seen reports whether the delivery was already processed
func (d *WebhookDeduplicator) Seen(ctx context.Context, event, reference string) bool {
	if d == nil {
		return false
	}
	n, err := d.client.Exists(ctx, WebhookKey(event, reference)).Result()
	if err != nil {
		d.logger.WithError(err).WithField("reference", reference).Warn("Webhook dedupe lookup failed")
		return false
	}
	return n > 0
}

// MarkProcessed records a processed delivery
func (d *WebhookDeduplicator) MarkProcessed(ctx context.Context, event, reference string) {
	if d == nil {
		return
	}
	if err := d.client.Set(ctx, WebhookKey(event, reference), time.Now().UTC().Format(time.RFC3339), d.ttl).Err(); err != nil {
		d.logger.WithError(err).WithField("reference", reference).Warn("Failed to record webhook delivery")
	}
}
