package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PriceQuoter prices a party for a package
type PriceQuoter interface {
	Quote(ctx context.Context, packageID uuid.UUID, adults, children int) (*models.PriceBreakdown, error)
}

// AvailabilityReporter reports remaining slots for a package date
type AvailabilityReporter interface {
	Summary(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (*models.AvailabilitySummary, error)
}

// PackageHandler serves pre-booking quotes and availability
type PackageHandler struct {
	pricing      PriceQuoter
	availability AvailabilityReporter
	logger       *logrus.Logger
}

// NewPackageHandler creates a new PackageHandler
func NewPackageHandler(pricing PriceQuoter, availability AvailabilityReporter, logger *logrus.Logger) *PackageHandler {
	return &PackageHandler{pricing: pricing, availability: availability, logger: logger}
}

// Quote prices a party before booking
// @Summary Quote a package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Param adults query int true "Number of adults"
// @Param children query int false "Number of children"
// @Success 200 {object} models.PriceBreakdown
// @Router /api/v1/packages/{id}/quote [get]
func (h *PackageHandler) Quote(c *gin.Context) {
	packageID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	adults, err := strconv.Atoi(c.DefaultQuery("adults", "0"))
	if err != nil {
		badRequest(c, "adults must be a number", err)
		return
	}
	children, err := strconv.Atoi(c.DefaultQuery("children", "0"))
	if err != nil {
		badRequest(c, "children must be a number", err)
		return
	}

	quote, err := h.pricing.Quote(c.Request.Context(), packageID, adults, children)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// Availability reports slots left on a travel date
// @Router /api/v1/packages/{id}/availability [get]
func (h *PackageHandler) Availability(c *gin.Context) {
	packageID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	travelDate, err := time.Parse(models.DateLayout, c.Query("date"))
	if err != nil {
		badRequest(c, "date must be formatted as "+models.DateLayout, err)
		return
	}

	summary, err := h.availability.Summary(c.Request.Context(), packageID, travelDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
