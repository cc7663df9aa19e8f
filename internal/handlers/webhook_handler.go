package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/bluelagoon/travel-booking-backend/internal/middleware"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PaystackSignatureHeader carries the HMAC-SHA512 of the raw webhook body
const PaystackSignatureHeader = "X-Paystack-Signature"

// MaxWebhookBodyBytes caps the unauthenticated body read before the signature is checked
const MaxWebhookBodyBytes = 1 << 20

// WebhookProcessor reconciles gateway notifications
type WebhookProcessor interface {
	Handle(ctx context.Context, body []byte, signature string, meta models.RequestMeta) (*services.WebhookResult, error)
}

// WebhookHandler receives Paystack webhooks
type WebhookHandler struct {
	webhooks WebhookProcessor
	logger   *logrus.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks WebhookProcessor, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// HandlePaystack verifies and applies a Paystack event. A 200 tells Paystack to stop
// retrying, so it is only returned once the event is durably applied or safely ignored.
// @Summary Paystack webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Event acknowledged"
// @Failure 400 {object} map[string]interface{} "Bad signature or payload"
// @Failure 413 {object} map[string]interface{} "Body larger than MaxWebhookBodyBytes"
// @Failure 500 {object} map[string]interface{} "Processing failed, Paystack will retry"
// @Router /api/v1/webhooks/paystack [post]
func (h *WebhookHandler) HandlePaystack(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.WithField("limit_bytes", tooLarge.Limit).Warn("Webhook body too large, rejected")
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "payload_too_large",
				"message": "Webhook body exceeds the size limit",
				"code":    "PAYLOAD_TOO_LARGE",
			})
			return
		}
		badRequest(c, "Could not read request body", err)
		return
	}

	result, err := h.webhooks.Handle(c.Request.Context(), body, c.GetHeader(PaystackSignatureHeader), middleware.RequestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"event":     result.Event,
		"reference": result.Reference,
		"outcome":   result.Outcome,
	})
}
