package handlers

import (
	"errors"
	"net/http"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	status  int
	error   string
	code    string
	details interface{}
}

// classify maps a service error onto its HTTP response
func classify(err error) errorResponse {
	var (
		validationErr *models.ValidationError
		partyErr      *models.PartySizeError
		capacityErr   *models.CapacityExceededError
		mismatchErr   *models.TravelerCountMismatchError
		transitionErr *models.InvalidTransitionError
		windowErr     *models.CancellationWindowError
		amountErr     *models.InvalidAmountError
		gatewayErr    *models.GatewayError
	)

	switch {
	case errors.As(err, &validationErr):
		return errorResponse{http.StatusBadRequest, "validation_error", "VALIDATION_ERROR", validationErr}
	case errors.Is(err, models.ErrInvalidSignature):
		return errorResponse{http.StatusBadRequest, "invalid_signature", "INVALID_SIGNATURE", nil}

	case errors.As(err, &partyErr):
		return errorResponse{http.StatusUnprocessableEntity, "invalid_party_size", "INVALID_PARTY_SIZE", partyErr}
	case errors.As(err, &mismatchErr):
		return errorResponse{http.StatusUnprocessableEntity, "traveler_count_mismatch", "TRAVELER_COUNT_MISMATCH", mismatchErr}
	case errors.As(err, &windowErr):
		return errorResponse{http.StatusUnprocessableEntity, "cancellation_window", "CANCELLATION_WINDOW_CLOSED", windowErr}
	case errors.As(err, &amountErr):
		return errorResponse{http.StatusUnprocessableEntity, "invalid_amount", "INVALID_AMOUNT", amountErr}
	case errors.Is(err, models.ErrPackageUnavailable):
		return errorResponse{http.StatusUnprocessableEntity, "package_unavailable", "PACKAGE_UNAVAILABLE", nil}

	case errors.As(err, &capacityErr):
		return errorResponse{http.StatusConflict, "capacity_exceeded", "CAPACITY_EXCEEDED", capacityErr}
	case errors.As(err, &transitionErr):
		return errorResponse{http.StatusConflict, "invalid_transition", "INVALID_STATUS_TRANSITION", transitionErr}
	case errors.Is(err, models.ErrBookingCancelled):
		return errorResponse{http.StatusConflict, "booking_cancelled", "BOOKING_CANCELLED", nil}
	case errors.Is(err, models.ErrBookingAlreadyPaid):
		return errorResponse{http.StatusConflict, "booking_paid", "BOOKING_ALREADY_PAID", nil}

	case errors.Is(err, models.ErrForbidden):
		return errorResponse{http.StatusForbidden, "forbidden", "FORBIDDEN", nil}

	case errors.Is(err, models.ErrBookingNotFound):
		return errorResponse{http.StatusNotFound, "not_found", "BOOKING_NOT_FOUND", nil}
	case errors.Is(err, models.ErrPackageNotFound):
		return errorResponse{http.StatusNotFound, "not_found", "PACKAGE_NOT_FOUND", nil}
	case errors.Is(err, models.ErrTravelerNotFound):
		return errorResponse{http.StatusNotFound, "not_found", "TRAVELER_NOT_FOUND", nil}
	case errors.Is(err, models.ErrTransactionNotFound):
		return errorResponse{http.StatusNotFound, "not_found", "TRANSACTION_NOT_FOUND", nil}

	case errors.As(err, &gatewayErr):
		return errorResponse{http.StatusBadGateway, "gateway_error", "PAYMENT_GATEWAY_ERROR", nil}
	}

	return errorResponse{http.StatusInternalServerError, "internal_error", "INTERNAL_ERROR", nil}
}

// respondError writes the error response for err. Server errors are logged and their
// message is not exposed.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	resp := classify(err)

	body := gin.H{
		"error":   resp.error,
		"message": err.Error(),
		"code":    resp.code,
	}
	if resp.details != nil {
		body["details"] = resp.details
	}

	switch {
	case resp.status >= http.StatusInternalServerError:
		logger.WithError(err).WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request failed")
		if resp.status == http.StatusInternalServerError {
			body["message"] = "An unexpected error occurred"
		}
		_ = c.Error(err)
	case resp.status == http.StatusForbidden:
		logger.WithField("path", c.Request.URL.Path).Warn("Access to booking denied")
	}

	c.JSON(resp.status, body)
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{
		"error":   "invalid_request",
		"message": message,
		"code":    "INVALID_REQUEST",
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// parseUUIDParam reads a uuid path parameter, writing a 400 when it is malformed
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}
