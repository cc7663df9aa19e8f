package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bluelagoon/travel-booking-backend/internal/middleware"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BookingManager is the booking lifecycle used by BookingHandler
type BookingManager interface {
	Create(ctx context.Context, req *models.CreateBookingRequest, actor *models.Actor) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string, actor *models.Actor) (*models.Booking, error)
	ListForUser(ctx context.Context, actor *models.Actor, page, limit int) (*models.BookingListResponse, error)
	ListAll(ctx context.Context, filter models.BookingFilter, page, limit int, actor *models.Actor) (*models.BookingListResponse, error)
	Confirm(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, actor *models.Actor) (*models.Booking, error)
	Complete(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error)
	AddTraveler(ctx context.Context, bookingID uuid.UUID, req *models.TravelerRequest, actor *models.Actor) (*models.Traveler, error)
	UpdateTraveler(ctx context.Context, bookingID, travelerID uuid.UUID, req *models.TravelerRequest, actor *models.Actor) (*models.Traveler, error)
	RemoveTraveler(ctx context.Context, bookingID, travelerID uuid.UUID, actor *models.Actor) error
}

// BookingHandler handles travel package bookings
type BookingHandler struct {
	bookings BookingManager
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingManager, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// CreateBooking creates a booking for the authenticated user or a guest
// @Summary Create a travel package booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.Booking
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 409 {object} map[string]interface{} "Not enough slots"
// @Failure 422 {object} map[string]interface{} "Party size outside package limits"
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), &req, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// ListMyBookings returns the authenticated user's bookings
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} models.BookingListResponse
// @Security BearerAuth
// @Router /api/v1/bookings [get]
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	resp, err := h.bookings.ListForUser(c.Request.Context(), middleware.ActorFromContext(c), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListAllBookings returns every booking, newest first, optionally filtered by status
// @Summary List all bookings
// @Tags Admin
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Param booking_status query string false "pending, confirmed, cancelled or completed"
// @Param payment_status query string false "pending, partial, paid, failed or refunded"
// @Success 200 {object} models.BookingListResponse
// @Security BearerAuth
// @Router /api/v1/admin/bookings [get]
func (h *BookingHandler) ListAllBookings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter := models.BookingFilter{
		BookingStatus: models.BookingStatus(c.Query("booking_status")),
		PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
	}

	resp, err := h.bookings.ListAll(c.Request.Context(), filter, page, limit, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetBooking returns a booking with its travelers
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetBookingByReference looks a booking up by its BLT reference
// @Router /api/v1/bookings/reference/{reference} [get]
func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	booking, err := h.bookings.GetByReference(c.Request.Context(), c.Param("reference"), middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking cancels a booking outside the cancellation window
// @Summary Cancel a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.CancelBookingRequest false "Cancellation reason"
// @Success 200 {object} models.Booking
// @Failure 409 {object} map[string]interface{} "Booking cannot be cancelled"
// @Failure 422 {object} map[string]interface{} "Too close to the travel date"
// @Router /api/v1/bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), id, req.Reason, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ConfirmBooking moves a pending booking to confirmed (admin)
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/confirm [post]
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	h.lifecycle(c, h.bookings.Confirm)
}

// CompleteBooking marks a confirmed booking as completed (admin)
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/complete [post]
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	h.lifecycle(c, h.bookings.Complete)
}

func (h *BookingHandler) lifecycle(c *gin.Context, apply func(context.Context, uuid.UUID, *models.Actor) (*models.Booking, error)) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := apply(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// AddTraveler adds a traveler to a booking
// @Summary Add a traveler
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.TravelerRequest true "Traveler details"
// @Success 201 {object} models.Traveler
// @Failure 409 {object} map[string]interface{} "Booking is full"
// @Router /api/v1/bookings/{id}/travelers [post]
func (h *BookingHandler) AddTraveler(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.TravelerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	traveler, err := h.bookings.AddTraveler(c.Request.Context(), id, &req, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, traveler)
}

// UpdateTraveler replaces a traveler's details on a pending booking
// @Summary Update a traveler
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param traveler_id path string true "Traveler ID"
// @Param request body models.TravelerRequest true "Traveler details"
// @Success 200 {object} models.Traveler
// @Failure 404 {object} map[string]interface{} "Traveler not found"
// @Failure 409 {object} map[string]interface{} "Booking is no longer pending"
// @Router /api/v1/bookings/{id}/travelers/{traveler_id} [put]
func (h *BookingHandler) UpdateTraveler(c *gin.Context) {
	bookingID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	travelerID, ok := parseUUIDParam(c, "traveler_id")
	if !ok {
		return
	}

	var req models.TravelerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	traveler, err := h.bookings.UpdateTraveler(c.Request.Context(), bookingID, travelerID, &req, middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, traveler)
}

// RemoveTraveler removes a traveler from a pending booking
// @Router /api/v1/bookings/{id}/travelers/{traveler_id} [delete]
func (h *BookingHandler) RemoveTraveler(c *gin.Context) {
	bookingID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	travelerID, ok := parseUUIDParam(c, "traveler_id")
	if !ok {
		return
	}

	if err := h.bookings.RemoveTraveler(c.Request.Context(), bookingID, travelerID, middleware.ActorFromContext(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Traveler removed"})
}
