package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxMismatchLimit = 200

// PaymentAuditReader exposes the payment audit trail to administrators
type PaymentAuditReader interface {
	ListByReference(ctx context.Context, reference string) ([]models.PaymentAudit, error)
	GetAmountMismatches(ctx context.Context, limit int) ([]models.PaymentAudit, error)
}

// AuditHandler serves payment audit entries for reconciliation
type AuditHandler struct {
	audits PaymentAuditReader
	logger *logrus.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audits PaymentAuditReader, logger *logrus.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, logger: logger}
}

// ListMismatches returns recent entries where the gateway amount differed from the ledger
// @Summary List amount mismatches
// @Tags Admin
// @Security BearerAuth
// @Param limit query int false "Max entries (default 50)"
// @Router /api/v1/admin/payments/mismatches [get]
func (h *AuditHandler) ListMismatches(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive number", err)
		return
	}
	if limit > maxMismatchLimit {
		limit = maxMismatchLimit
	}

	audits, err := h.audits.GetAmountMismatches(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mismatches": audits,
		"count":      len(audits),
	})
}

// ListTrail returns every audit entry for a transaction or gateway reference, oldest first
// @Router /api/v1/admin/payments/{reference}/audit [get]
func (h *AuditHandler) ListTrail(c *gin.Context) {
	reference := c.Param("reference")

	audits, err := h.audits.ListByReference(c.Request.Context(), reference)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference": reference,
		"entries":   audits,
		"count":     len(audits),
	})
}
