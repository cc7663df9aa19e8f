package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Booking lifecycle operations by outcome",
		},
		[]string{"operation", "status"},
	)

	transactionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_transaction_retries_total",
			Help: "Transactions retried after serialization failures or reference collisions",
		},
		[]string{"operation"},
	)

	capacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_capacity_rejections_total",
			Help: "Requests rejected because the party did not fit",
		},
		[]string{"scope"},
	)

	referenceCollisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_collisions_total",
			Help: "Generated references that were already taken",
		},
		[]string{"kind"},
	)

	paymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment transaction state changes by source",
		},
		[]string{"status", "source"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paystack_webhook_events_total",
			Help: "Webhook deliveries by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paystack_request_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
)

// ObserveBookingOperation counts a lifecycle operation
func ObserveBookingOperation(operation string, err error) {
	bookingOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// IncTransactionRetry counts a retried database transaction
func IncTransactionRetry(operation string) {
	transactionRetries.WithLabelValues(operation).Inc()
}

// IncCapacityRejection counts a capacity rejection for a scope
func IncCapacityRejection(scope string) {
	capacityRejections.WithLabelValues(scope).Inc()
}

// IncReferenceCollision counts a reference that had to be regenerated
func IncReferenceCollision(kind string) {
	referenceCollisions.WithLabelValues(kind).Inc()
}

// ObservePaymentTransition counts a transaction reaching a status
func ObservePaymentTransition(status, source string) {
	paymentTransitions.WithLabelValues(status, source).Inc()
}

// ObserveWebhook counts a webhook delivery
func ObserveWebhook(event, result string) {
	webhookEvents.WithLabelValues(event, result).Inc()
}

// ObserveGatewayCall records the latency of a gateway request
func ObserveGatewayCall(operation string, start time.Time, err error) {
	gatewayLatency.WithLabelValues(operation, outcome(err)).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
