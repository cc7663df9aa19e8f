package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/middleware"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	return router
}

// asUser simulates AuthMiddleware for a user with the given roles
func asUser(userID uuid.UUID, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, middleware.UserContext{
			UserID: userID,
			Email:  "ada@example.com",
			Roles:  roles,
		})
		c.Next()
	}
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// MOCKS
// ============================================================================

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) booking(args mock.Arguments) (*models.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookings) Create(ctx context.Context, req *models.CreateBookingRequest, actor *models.Actor) (*models.Booking, error) {
	return m.booking(m.Called(ctx, req, actor))
}

func (m *mockBookings) Get(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, actor))
}

func (m *mockBookings) GetByReference(ctx context.Context, reference string, actor *models.Actor) (*models.Booking, error) {
	return m.booking(m.Called(ctx, reference, actor))
}

func (m *mockBookings) ListForUser(ctx context.Context, actor *models.Actor, page, limit int) (*models.BookingListResponse, error) {
	args := m.Called(ctx, actor, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingListResponse), args.Error(1)
}

func (m *mockBookings) ListAll(ctx context.Context, filter models.BookingFilter, page, limit int, actor *models.Actor) (*models.BookingListResponse, error) {
	args := m.Called(ctx, filter, page, limit, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingListResponse), args.Error(1)
}

func (m *mockBookings) Confirm(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, actor))
}

func (m *mockBookings) Cancel(ctx context.Context, id uuid.UUID, reason string, actor *models.Actor) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, reason, actor))
}

func (m *mockBookings) Complete(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error) {
	return m.booking(m.Called(ctx, id, actor))
}

func (m *mockBookings) AddTraveler(ctx context.Context, bookingID uuid.UUID, req *models.TravelerRequest, actor *models.Actor) (*models.Traveler, error) {
	args := m.Called(ctx, bookingID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Traveler), args.Error(1)
}

func (m *mockBookings) UpdateTraveler(ctx context.Context, bookingID, travelerID uuid.UUID, req *models.TravelerRequest, actor *models.Actor) (*models.Traveler, error) {
	args := m.Called(ctx, bookingID, travelerID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Traveler), args.Error(1)
}

func (m *mockBookings) RemoveTraveler(ctx context.Context, bookingID, travelerID uuid.UUID, actor *models.Actor) error {
	return m.Called(ctx, bookingID, travelerID, actor).Error(0)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) Initialize(ctx context.Context, bookingID uuid.UUID, req *models.InitializePaymentRequest, actor *models.Actor, meta models.RequestMeta) (*models.InitializePaymentResponse, error) {
	args := m.Called(ctx, bookingID, req, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InitializePaymentResponse), args.Error(1)
}

func (m *mockPayments) Verify(ctx context.Context, reference string, actor *models.Actor, meta models.RequestMeta) (*models.VerifyPaymentResponse, error) {
	args := m.Called(ctx, reference, actor, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerifyPaymentResponse), args.Error(1)
}

func (m *mockPayments) ListForBooking(ctx context.Context, bookingID uuid.UUID, actor *models.Actor) ([]models.PaymentTransaction, error) {
	args := m.Called(ctx, bookingID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PaymentTransaction), args.Error(1)
}

type mockWebhooks struct {
	mock.Mock
}

func (m *mockWebhooks) Handle(ctx context.Context, body []byte, signature string, meta models.RequestMeta) (*services.WebhookResult, error) {
	args := m.Called(ctx, body, signature, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.WebhookResult), args.Error(1)
}

type mockQuoter struct {
	mock.Mock
}

func (m *mockQuoter) Quote(ctx context.Context, packageID uuid.UUID, adults, children int) (*models.PriceBreakdown, error) {
	args := m.Called(ctx, packageID, adults, children)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceBreakdown), args.Error(1)
}

func (m *mockQuoter) Summary(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (*models.AvailabilitySummary, error) {
	args := m.Called(ctx, packageID, travelDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AvailabilitySummary), args.Error(1)
}
