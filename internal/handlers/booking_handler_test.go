package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/bluelagoon/travel-booking-backend/internal/middleware"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking_Guest(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	router := setupRouter()
	router.POST("/bookings", handler.CreateBooking)

	packageID := uuid.New()
	created := &models.Booking{
		ID:               uuid.New(),
		BookingReference: "BLT-20260302-A1B2C3",
		TravelPackageID:  packageID,
		NumberOfAdults:   2,
		TotalAmount:      decimal.NewFromInt(90000),
		BookingStatus:    models.BookingStatusPending,
	}
	bookings.On("Create", mock.Anything, mock.MatchedBy(func(req *models.CreateBookingRequest) bool {
		return req.TravelPackageID == packageID && req.NumberOfAdults == 2 && *req.GuestEmail == "guest@example.com"
	}), (*models.Actor)(nil)).Return(created, nil)

	body := fmt.Sprintf(`{"travel_package_id":%q,"travel_date":"2026-04-01","number_of_adults":2,"guest_email":"guest@example.com"}`, packageID)
	w := doRequest(router, http.MethodPost, "/bookings", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BLT-20260302-A1B2C3", resp.BookingReference)
	bookings.AssertExpectations(t)
}

func TestCreateBooking_AuthenticatedActor(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	userID := uuid.New()
	router := setupRouter()
	router.POST("/bookings", asUser(userID, "user"), handler.CreateBooking)

	bookings.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(actor *models.Actor) bool {
		return actor != nil && actor.UserID == userID
	})).Return(&models.Booking{ID: uuid.New(), UserID: &userID}, nil)

	body := fmt.Sprintf(`{"travel_package_id":%q,"travel_date":"2026-04-01","number_of_adults":1}`, uuid.New())
	w := doRequest(router, http.MethodPost, "/bookings", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	bookings.AssertExpectations(t)
}

func TestCreateBooking_Errors(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		serviceErr   error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Malformed JSON",
			body:         `{"travel_package_id":`,
			expectedCode: http.StatusBadRequest,
			expectedBody: "INVALID_REQUEST",
		},
		{
			name:         "Missing package",
			body:         `{"travel_date":"2026-04-01","number_of_adults":1}`,
			expectedCode: http.StatusBadRequest,
			expectedBody: "INVALID_REQUEST",
		},
		{
			name:         "Capacity exceeded",
			serviceErr:   &models.CapacityExceededError{Scope: models.CapacityScopeTravelDate, Requested: 6, Remaining: 4},
			expectedCode: http.StatusConflict,
			expectedBody: "CAPACITY_EXCEEDED",
		},
		{
			name:         "Party too large",
			serviceErr:   &models.PartySizeError{Requested: 31, Min: 1, Max: 30},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: "INVALID_PARTY_SIZE",
		},
		{
			name:         "Travel date invalid",
			serviceErr:   models.NewValidationError("travel_date", "must be in the future"),
			expectedCode: http.StatusBadRequest,
			expectedBody: "travel_date",
		},
		{
			name:         "Package missing",
			serviceErr:   fmt.Errorf("failed to load package: %w", models.ErrPackageNotFound),
			expectedCode: http.StatusNotFound,
			expectedBody: "PACKAGE_NOT_FOUND",
		},
		{
			name:         "Unexpected failure is not leaked",
			serviceErr:   fmt.Errorf("failed to insert booking: %w", fmt.Errorf("pq: connection refused")),
			expectedCode: http.StatusInternalServerError,
			expectedBody: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings := &mockBookings{}
			handler := NewBookingHandler(bookings, testLogger())
			router := setupRouter()
			router.POST("/bookings", handler.CreateBooking)

			body := tt.body
			if body == "" {
				body = fmt.Sprintf(`{"travel_package_id":%q,"travel_date":"2026-04-01","number_of_adults":6}`, uuid.New())
				bookings.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}

			w := doRequest(router, http.MethodPost, "/bookings", body)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestGetBooking(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	userID := uuid.New()
	router := setupRouter()
	router.GET("/bookings/:id", asUser(userID), handler.GetBooking)

	owned := uuid.New()
	foreign := uuid.New()
	bookings.On("Get", mock.Anything, owned, mock.Anything).Return(&models.Booking{ID: owned, UserID: &userID}, nil)
	bookings.On("Get", mock.Anything, foreign, mock.Anything).Return(nil, models.ErrForbidden)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/bookings/"+owned.String(), "").Code)

	w := doRequest(router, http.MethodGet, "/bookings/"+foreign.String(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	w = doRequest(router, http.MethodGet, "/bookings/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBookingByReference_NotFound(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	router := setupRouter()
	router.GET("/bookings/reference/:reference", handler.GetBookingByReference)

	bookings.On("GetByReference", mock.Anything, "BLT-20260302-ZZZZZZ", (*models.Actor)(nil)).Return(nil, models.ErrBookingNotFound)

	w := doRequest(router, http.MethodGet, "/bookings/reference/BLT-20260302-ZZZZZZ", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "BOOKING_NOT_FOUND")
}

func TestListMyBookings(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	userID := uuid.New()
	router := setupRouter()
	router.GET("/bookings", asUser(userID), handler.ListMyBookings)

	bookings.On("ListForUser", mock.Anything, mock.Anything, 2, 5).
		Return(&models.BookingListResponse{Bookings: []models.Booking{{ID: uuid.New()}}, Page: 2, Limit: 5, Count: 1}, nil)

	w := doRequest(router, http.MethodGet, "/bookings?page=2&limit=5", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.BookingListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	bookings.AssertExpectations(t)
}

func TestCancelBooking(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	userID := uuid.New()
	router := setupRouter()
	router.POST("/bookings/:id/cancel", asUser(userID), handler.CancelBooking)

	ok := uuid.New()
	late := uuid.New()
	bookings.On("Cancel", mock.Anything, ok, "change of plans", mock.Anything).
		Return(&models.Booking{ID: ok, BookingStatus: models.BookingStatusCancelled}, nil)
	bookings.On("Cancel", mock.Anything, late, "", mock.Anything).
		Return(nil, &models.CancellationWindowError{DaysUntilTravel: 3, MinimumDays: 3})

	w := doRequest(router, http.MethodPost, "/bookings/"+ok.String()+"/cancel", `{"reason":"change of plans"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"booking_status":"cancelled"`)

	w = doRequest(router, http.MethodPost, "/bookings/"+late.String()+"/cancel", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "CANCELLATION_WINDOW_CLOSED")
	bookings.AssertExpectations(t)
}

func TestConfirmBooking_AdminOnly(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	id := uuid.New()

	bookings.On("Confirm", mock.Anything, id, mock.Anything).
		Return(&models.Booking{ID: id, BookingStatus: models.BookingStatusConfirmed}, nil).Once()

	admin := setupRouter()
	admin.POST("/bookings/:id/confirm", asUser(uuid.New(), models.RoleAdmin), middleware.RequireRole(models.RoleAdmin), handler.ConfirmBooking)
	assert.Equal(t, http.StatusOK, doRequest(admin, http.MethodPost, "/bookings/"+id.String()+"/confirm", "").Code)

	member := setupRouter()
	member.POST("/bookings/:id/confirm", asUser(uuid.New(), "user"), middleware.RequireRole(models.RoleAdmin), handler.ConfirmBooking)
	assert.Equal(t, http.StatusForbidden, doRequest(member, http.MethodPost, "/bookings/"+id.String()+"/confirm", "").Code)

	bookings.AssertExpectations(t)
}

func TestCompleteBooking_InvalidTransition(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	router := setupRouter()
	router.POST("/bookings/:id/complete", asUser(uuid.New(), models.RoleAdmin), handler.CompleteBooking)

	id := uuid.New()
	bookings.On("Complete", mock.Anything, id, mock.Anything).
		Return(nil, &models.InvalidTransitionError{Entity: "booking", From: "pending", To: "completed"})

	w := doRequest(router, http.MethodPost, "/bookings/"+id.String()+"/complete", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_STATUS_TRANSITION")
}

func TestTravelers(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	userID := uuid.New()
	router := setupRouter()
	router.POST("/bookings/:id/travelers", asUser(userID), handler.AddTraveler)
	router.DELETE("/bookings/:id/travelers/:traveler_id", asUser(userID), handler.RemoveTraveler)

	full := uuid.New()
	open := uuid.New()
	travelerID := uuid.New()
	bookings.On("AddTraveler", mock.Anything, full, mock.Anything, mock.Anything).
		Return(nil, &models.CapacityExceededError{Scope: models.CapacityScopeBooking, Requested: 1})
	bookings.On("AddTraveler", mock.Anything, open, mock.MatchedBy(func(req *models.TravelerRequest) bool {
		return req.FirstName == "Chidi" && req.LastName == "Okafor"
	}), mock.Anything).Return(&models.Traveler{ID: travelerID, BookingID: open, FirstName: "Chidi"}, nil)
	bookings.On("RemoveTraveler", mock.Anything, open, travelerID, mock.Anything).Return(nil)

	traveler := `{"first_name":"Chidi","last_name":"Okafor"}`

	w := doRequest(router, http.MethodPost, "/bookings/"+full.String()+"/travelers", traveler)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CAPACITY_EXCEEDED")

	w = doRequest(router, http.MethodPost, "/bookings/"+open.String()+"/travelers", traveler)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPost, "/bookings/"+open.String()+"/travelers", `{"first_name":"Chidi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodDelete, "/bookings/"+open.String()+"/travelers/"+travelerID.String(), "")
	assert.Equal(t, http.StatusOK, w.Code)

	bookings.AssertExpectations(t)
}

func TestUpdateTraveler(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())
	router := setupRouter()
	router.PUT("/bookings/:id/travelers/:traveler_id", asUser(uuid.New()), handler.UpdateTraveler)

	bookingID := uuid.New()
	travelerID := uuid.New()
	confirmed := uuid.New()
	bookings.On("UpdateTraveler", mock.Anything, bookingID, travelerID, mock.MatchedBy(func(req *models.TravelerRequest) bool {
		return req.FirstName == "Adaeze" && req.PassportExpiry != nil && *req.PassportExpiry == "2030-01-01"
	}), mock.Anything).Return(&models.Traveler{ID: travelerID, BookingID: bookingID, FirstName: "Adaeze"}, nil)
	bookings.On("UpdateTraveler", mock.Anything, confirmed, travelerID, mock.Anything, mock.Anything).
		Return(nil, &models.InvalidTransitionError{Entity: "booking", From: "confirmed", To: "traveler_updated"})
	bookings.On("UpdateTraveler", mock.Anything, bookingID, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.ErrTravelerNotFound)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		contains string
	}{
		{
			name:     "Updated",
			path:     "/bookings/" + bookingID.String() + "/travelers/" + travelerID.String(),
			body:     `{"first_name":"Adaeze","last_name":"Obi","passport_expiry":"2030-01-01"}`,
			wantCode: http.StatusOK,
			contains: `"first_name":"Adaeze"`,
		},
		{
			name:     "Booking Not Pending",
			path:     "/bookings/" + confirmed.String() + "/travelers/" + travelerID.String(),
			body:     `{"first_name":"Adaeze","last_name":"Obi"}`,
			wantCode: http.StatusConflict,
			contains: "INVALID_STATUS_TRANSITION",
		},
		{
			name:     "Unknown Traveler",
			path:     "/bookings/" + bookingID.String() + "/travelers/" + uuid.NewString(),
			body:     `{"first_name":"Adaeze","last_name":"Obi"}`,
			wantCode: http.StatusNotFound,
			contains: "TRAVELER_NOT_FOUND",
		},
		{
			name:     "Missing Last Name",
			path:     "/bookings/" + bookingID.String() + "/travelers/" + travelerID.String(),
			body:     `{"first_name":"Adaeze"}`,
			wantCode: http.StatusBadRequest,
			contains: "INVALID_REQUEST",
		},
		{
			name:     "Bad Traveler ID",
			path:     "/bookings/" + bookingID.String() + "/travelers/not-a-uuid",
			body:     `{"first_name":"Adaeze","last_name":"Obi"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestListAllBookings(t *testing.T) {
	bookings := &mockBookings{}
	handler := NewBookingHandler(bookings, testLogger())

	filter := models.BookingFilter{BookingStatus: models.BookingStatusConfirmed, PaymentStatus: models.PaymentStatusPartial}
	bookings.On("ListAll", mock.Anything, filter, 3, 10, mock.MatchedBy(func(a *models.Actor) bool { return a.IsAdmin() })).
		Return(&models.BookingListResponse{Bookings: []models.Booking{{ID: uuid.New()}}, Page: 3, Limit: 10, Count: 1, Total: 21}, nil)
	bookings.On("ListAll", mock.Anything, models.BookingFilter{BookingStatus: "archived"}, 1, 20, mock.Anything).
		Return(nil, models.NewValidationError("booking_status", "unknown booking status archived"))

	admin := setupRouter()
	admin.GET("/admin/bookings", asUser(uuid.New(), models.RoleAdmin), middleware.RequireRole(models.RoleAdmin), handler.ListAllBookings)

	w := doRequest(admin, http.MethodGet, "/admin/bookings?page=3&limit=10&booking_status=confirmed&payment_status=partial", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.BookingListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 21, resp.Total)
	assert.Equal(t, 1, resp.Count)

	w = doRequest(admin, http.MethodGet, "/admin/bookings?booking_status=archived", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	member := setupRouter()
	member.GET("/admin/bookings", asUser(uuid.New(), "user"), middleware.RequireRole(models.RoleAdmin), handler.ListAllBookings)
	assert.Equal(t, http.StatusForbidden, doRequest(member, http.MethodGet, "/admin/bookings", "").Code)

	bookings.AssertExpectations(t)
}
