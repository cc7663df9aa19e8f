package handlers

import (
	"context"
	"net/http"

	"github.com/bluelagoon/travel-booking-backend/internal/middleware"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentProcessor opens and verifies gateway payments
type PaymentProcessor interface {
	Initialize(ctx context.Context, bookingID uuid.UUID, req *models.InitializePaymentRequest, actor *models.Actor, meta models.RequestMeta) (*models.InitializePaymentResponse, error)
	Verify(ctx context.Context, reference string, actor *models.Actor, meta models.RequestMeta) (*models.VerifyPaymentResponse, error)
	ListForBooking(ctx context.Context, bookingID uuid.UUID, actor *models.Actor) ([]models.PaymentTransaction, error)
}

// PaymentHandler handles Paystack checkout and verification
type PaymentHandler struct {
	payments PaymentProcessor
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentProcessor, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// InitializePayment opens a Paystack checkout for a booking
// @Summary Initialize a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.InitializePaymentRequest false "Amount and type; defaults to the amount due"
// @Success 201 {object} models.InitializePaymentResponse
// @Failure 409 {object} map[string]interface{} "Booking cancelled or already paid"
// @Failure 422 {object} map[string]interface{} "Amount exceeds amount due"
// @Failure 502 {object} map[string]interface{} "Payment gateway error"
// @Router /api/v1/bookings/{id}/payments [post]
func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	bookingID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.InitializePaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	resp, err := h.payments.Initialize(c.Request.Context(), bookingID, &req, middleware.ActorFromContext(c), middleware.RequestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListPayments returns a booking's payment transactions
// @Router /api/v1/bookings/{id}/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	bookingID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	transactions, err := h.payments.ListForBooking(c.Request.Context(), bookingID, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

// VerifyPayment polls Paystack for a transaction and applies the result
// @Summary Verify a payment
// @Tags Payments
// @Produce json
// @Param reference path string true "Transaction or gateway reference"
// @Success 200 {object} models.VerifyPaymentResponse
// @Failure 404 {object} map[string]interface{} "Unknown reference"
// @Failure 502 {object} map[string]interface{} "Payment gateway error"
// @Router /api/v1/payments/verify/{reference} [get]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	resp, err := h.payments.Verify(c.Request.Context(), c.Param("reference"), middleware.ActorFromContext(c), middleware.RequestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ProcessingFee quotes the gateway fee for an amount
// @Router /api/v1/payments/fee [get]
func (h *PaymentHandler) ProcessingFee(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		badRequest(c, "amount must be a decimal number", err)
		return
	}

	quote, err := services.ProcessingFee(amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}
