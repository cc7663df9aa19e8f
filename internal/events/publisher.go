package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type correlationIDKey struct{}

// WithCorrelationID stores the request correlation id for published events
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id stored by WithCorrelationID
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Publisher serialises domain events onto a watermill publisher.
// A Publisher with no backend discards events.
type Publisher struct {
	pub    message.Publisher
	logger *logrus.Logger
}

// NewPublisher wraps an existing watermill publisher
func NewPublisher(pub message.Publisher, logger *logrus.Logger) *Publisher {
	return &Publisher{pub: pub, logger: logger}
}

// NewPublisherFromConfig builds the publisher selected by cfg.Backend
func NewPublisherFromConfig(cfg config.EventsConfig, redisClient *redis.Client, logger *logrus.Logger) (*Publisher, error) {
	wlogger := NewLoggerAdapter(logger)

	switch cfg.Backend {
	case "", "none":
		return NewPublisher(nil, logger), nil
	case "gochannel":
		return NewPublisher(gochannel.NewGoChannel(gochannel.Config{}, wlogger), logger), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis event backend requires REDIS_URL")
		}
		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: redisClient,
		}, wlogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
		}
		return NewPublisher(pub, logger), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Publish marshals payload to JSON and publishes it on topic
func (p *Publisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	if p == nil || p.pub == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), body)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", topic)
	if id := CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	if err := p.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":      topic,
		"message_id": msg.UUID,
	}).Debug("Domain event published")
	return nil
}

// Close releases the underlying publisher
func (p *Publisher) Close() error {
	if p == nil || p.pub == nil {
		return nil
	}
	return p.pub.Close()
}
