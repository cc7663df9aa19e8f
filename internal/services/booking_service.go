package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/bluelagoon/travel-booking-backend/internal/database"
	"github.com/bluelagoon/travel-booking-backend/internal/events"
	"github.com/bluelagoon/travel-booking-backend/internal/metrics"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/internal/utils"
	"github.com/bluelagoon/travel-booking-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BookingService drives bookings through their lifecycle
type BookingService struct {
	store          database.Store
	publisher      EventPublisher
	phoneValidator *validator.PhoneValidator
	cfg            config.BookingConfig
	logger         *logrus.Logger
	now            func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(store database.Store, publisher EventPublisher, cfg config.BookingConfig, logger *logrus.Logger) *BookingService {
	return &BookingService{
		store:          store,
		publisher:      publisher,
		phoneValidator: validator.NewPhoneValidator(),
		cfg:            cfg,
		logger:         logger,
		now:            utcNow,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// Create prices and books a party. Capacity check, reference generation and the inserts
// run in one transaction; conflicts are retried with fresh references.
func (s *BookingService) Create(ctx context.Context, req *models.CreateBookingRequest, actor *models.Actor) (*models.Booking, error) {
	now := s.now()

	if err := ValidateParty(req.NumberOfAdults, req.NumberOfChildren); err != nil {
		return nil, err
	}
	declared := req.NumberOfAdults + req.NumberOfChildren
	if len(req.Travelers) > declared {
		return nil, &models.TravelerCountMismatchError{Declared: declared, Supplied: len(req.Travelers)}
	}

	travelDate, err := time.Parse(models.DateLayout, strings.TrimSpace(req.TravelDate))
	if err != nil {
		return nil, models.NewValidationError("travel_date", "must be a date in YYYY-MM-DD format")
	}

	var guest *guestContact
	if actor == nil {
		if guest, err = s.validateGuest(req); err != nil {
			return nil, err
		}
	}

	pkg, err := s.store.GetPackage(ctx, req.TravelPackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, models.ErrPackageUnavailable
	}
	if err := pkg.CheckTravelDate(travelDate, now); err != nil {
		return nil, err
	}

	price, err := CalculatePrice(pkg, req.NumberOfAdults, req.NumberOfChildren)
	if err != nil {
		return nil, err
	}

	booking := models.NewBooking(pkg.ID, travelDate, price, actor.IDPtr(), now)
	booking.SpecialRequests = trimmedOrNil(req.SpecialRequests)
	if guest != nil {
		booking.GuestFirstName = &guest.firstName
		booking.GuestLastName = &guest.lastName
		booking.GuestEmail = &guest.email
		booking.GuestPhone = &guest.phone
	}

	travelers := make([]models.Traveler, 0, len(req.Travelers))
	for i := range req.Travelers {
		traveler, err := req.Travelers[i].ToTraveler(booking.ID, booking.TravelDate, now)
		if err != nil {
			return nil, err
		}
		travelers = append(travelers, *traveler)
	}

	err = runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, "create_booking", func(tx database.Tx) error {
		if err := EnsureCapacity(ctx, tx, pkg, booking.NumberOfTravelers, booking.TravelDate); err != nil {
			return err
		}

		ref, err := generateReference(ctx, "booking", now, s.cfg.MaxReferenceAttempts, s.logger,
			utils.NewBookingReference, tx.BookingReferenceExists)
		if err != nil {
			return err
		}
		booking.BookingReference = ref

		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}
		for i := range travelers {
			if err := tx.InsertTraveler(ctx, &travelers[i]); err != nil {
				return err
			}
		}
		return nil
	})
	metrics.ObserveBookingOperation("create", err)
	if err != nil {
		return nil, err
	}

	booking.Travelers = travelers

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"package_id":        pkg.ID,
		"travel_date":       booking.TravelDate.Format(models.DateLayout),
		"travelers":         booking.NumberOfTravelers,
		"total_amount":      booking.TotalAmount.StringFixed(2),
		"guest":             booking.IsGuest(),
	}).Info("Booking created")

	publish(ctx, s.publisher, s.logger, events.TopicBookingCreated, bookingEvent(booking, ""))
	return booking, nil
}

type guestContact struct {
	firstName, lastName, email, phone string
}

func (s *BookingService) validateGuest(req *models.CreateBookingRequest) (*guestContact, error) {
	guest := &guestContact{
		firstName: valueOf(req.GuestFirstName),
		lastName:  valueOf(req.GuestLastName),
		email:     valueOf(req.GuestEmail),
		phone:     valueOf(req.GuestPhone),
	}

	switch {
	case guest.firstName == "":
		return nil, models.NewValidationError("guest_first_name", "required for guest bookings")
	case guest.lastName == "":
		return nil, models.NewValidationError("guest_last_name", "required for guest bookings")
	case guest.email == "":
		return nil, models.NewValidationError("guest_email", "required for guest bookings")
	case guest.phone == "":
		return nil, models.NewValidationError("guest_phone", "required for guest bookings")
	}
	if !strings.Contains(guest.email, "@") {
		return nil, models.NewValidationError("guest_email", "must be a valid email address")
	}

	phone, err := s.phoneValidator.Validate(guest.phone)
	if err != nil {
		return nil, models.NewValidationError("guest_phone", err.Error())
	}
	guest.phone = phone
	return guest, nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Confirm moves a pending booking to confirmed
func (s *BookingService) Confirm(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error) {
	return s.transition(ctx, id, actor, "confirm", events.TopicBookingConfirmed, "", func(b models.Booking, now time.Time) (models.Booking, error) {
		return b.Confirm(now)
	})
}

// Cancel cancels a pending or confirmed booking outside the cancellation window
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID, reason string, actor *models.Actor) (*models.Booking, error) {
	return s.transition(ctx, id, actor, "cancel", events.TopicBookingCancelled, reason, func(b models.Booking, now time.Time) (models.Booking, error) {
		return b.Cancel(reason, actor.IDPtr(), now)
	})
}

// Complete marks a confirmed booking as travelled
func (s *BookingService) Complete(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error) {
	return s.transition(ctx, id, actor, "complete", events.TopicBookingCompleted, "", func(b models.Booking, now time.Time) (models.Booking, error) {
		return b.Complete(now)
	})
}

func (s *BookingService) transition(ctx context.Context, id uuid.UUID, actor *models.Actor, operation, topic, reason string,
	apply func(models.Booking, time.Time) (models.Booking, error)) (*models.Booking, error) {

	var updated models.Booking
	err := runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, operation+"_booking", func(tx database.Tx) error {
		booking, err := tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeBooking(booking, actor); err != nil {
			return err
		}

		updated, err = apply(*booking, s.now())
		if err != nil {
			return err
		}
		return tx.UpdateBookingLifecycle(ctx, &updated)
	})
	metrics.ObserveBookingOperation(operation, err)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     updated.ID,
		"booking_status": updated.BookingStatus,
		"operation":      operation,
	}).Info("Booking status changed")

	publish(ctx, s.publisher, s.logger, topic, bookingEvent(&updated, reason))
	return &updated, nil
}

// ============================================================================
// TRAVELERS
// ============================================================================

// AddTraveler records another member of the party
func (s *BookingService) AddTraveler(ctx context.Context, bookingID uuid.UUID, req *models.TravelerRequest, actor *models.Actor) (*models.Traveler, error) {
	var traveler *models.Traveler
	err := runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, "add_traveler", func(tx database.Tx) error {
		booking, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(booking, actor); err != nil {
			return err
		}

		count, err := tx.CountTravelers(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := booking.CanAddTraveler(count); err != nil {
			var capacityErr *models.CapacityExceededError
			if errors.As(err, &capacityErr) {
				metrics.IncCapacityRejection(capacityErr.Scope)
			}
			return err
		}

		traveler, err = req.ToTraveler(booking.ID, booking.TravelDate, s.now())
		if err != nil {
			return err
		}
		return tx.InsertTraveler(ctx, traveler)
	})
	metrics.ObserveBookingOperation("add_traveler", err)
	if err != nil {
		return nil, err
	}
	return traveler, nil
}

// UpdateTraveler replaces a traveler's details while the booking is still pending.
// Passport expiry is checked against the booking's travel date again.
func (s *BookingService) UpdateTraveler(ctx context.Context, bookingID, travelerID uuid.UUID, req *models.TravelerRequest, actor *models.Actor) (*models.Traveler, error) {
	var updated *models.Traveler
	err := runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, "update_traveler", func(tx database.Tx) error {
		booking, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(booking, actor); err != nil {
			return err
		}
		if err := booking.CanUpdateTraveler(); err != nil {
			return err
		}

		existing, err := tx.GetTravelerForUpdate(ctx, bookingID, travelerID)
		if err != nil {
			return err
		}
		updated, err = req.ApplyTo(existing, booking.TravelDate, s.now())
		if err != nil {
			return err
		}
		return tx.UpdateTraveler(ctx, updated)
	})
	metrics.ObserveBookingOperation("update_traveler", err)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  bookingID,
		"traveler_id": travelerID,
	}).Info("Traveler updated")
	return updated, nil
}

// RemoveTraveler deletes a traveler while the booking is still pending
func (s *BookingService) RemoveTraveler(ctx context.Context, bookingID, travelerID uuid.UUID, actor *models.Actor) error {
	err := runInTx(ctx, s.store, s.cfg.MaxCreateAttempts, s.logger, "remove_traveler", func(tx database.Tx) error {
		booking, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := authorizeBooking(booking, actor); err != nil {
			return err
		}
		if err := booking.CanRemoveTraveler(); err != nil {
			return err
		}
		return tx.DeleteTraveler(ctx, bookingID, travelerID)
	})
	metrics.ObserveBookingOperation("remove_traveler", err)
	return err
}

// ============================================================================
// READS
// ============================================================================

// Get returns a booking with its travelers
func (s *BookingService) Get(ctx context.Context, id uuid.UUID, actor *models.Actor) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withTravelers(ctx, booking, actor)
}

// GetByReference returns a booking by its public reference
func (s *BookingService) GetByReference(ctx context.Context, reference string, actor *models.Actor) (*models.Booking, error) {
	booking, err := s.store.GetBookingByReference(ctx, strings.ToUpper(strings.TrimSpace(reference)))
	if err != nil {
		return nil, err
	}
	return s.withTravelers(ctx, booking, actor)
}

func (s *BookingService) withTravelers(ctx context.Context, booking *models.Booking, actor *models.Actor) (*models.Booking, error) {
	if err := authorizeBooking(booking, actor); err != nil {
		return nil, err
	}
	travelers, err := s.store.ListTravelers(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	booking.Travelers = travelers
	return booking, nil
}

// ListForUser returns a page of the actor's bookings, newest first
func (s *BookingService) ListForUser(ctx context.Context, actor *models.Actor, page, limit int) (*models.BookingListResponse, error) {
	if actor == nil {
		return nil, models.ErrForbidden
	}
	page, limit = normalizePage(page, limit)

	bookings, err := s.store.ListBookingsByUser(ctx, actor.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &models.BookingListResponse{Bookings: bookings, Page: page, Limit: limit, Count: len(bookings)}, nil
}

// ListAll returns a page of every booking matching the filter, newest first (admin)
func (s *BookingService) ListAll(ctx context.Context, filter models.BookingFilter, page, limit int, actor *models.Actor) (*models.BookingListResponse, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit)

	total, err := s.store.CountBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &models.BookingListResponse{Bookings: bookings, Page: page, Limit: limit, Count: len(bookings), Total: total}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// ListTravelers returns the travelers of a booking
func (s *BookingService) ListTravelers(ctx context.Context, bookingID uuid.UUID, actor *models.Actor) ([]models.Traveler, error) {
	booking, err := s.Get(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	return booking.Travelers, nil
}

func bookingEvent(b *models.Booking, reason string) events.BookingEvent {
	return events.BookingEvent{
		BookingID:         b.ID,
		BookingReference:  b.BookingReference,
		TravelPackageID:   b.TravelPackageID,
		TravelDate:        b.TravelDate.Format(models.DateLayout),
		NumberOfTravelers: b.NumberOfTravelers,
		TotalAmount:       b.TotalAmount,
		BookingStatus:     string(b.BookingStatus),
		UserID:            b.UserID,
		Reason:            reason,
		OccurredAt:        b.UpdatedAt,
	}
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func trimmedOrNil(s *string) *string {
	v := valueOf(s)
	if v == "" {
		return nil
	}
	return &v
}
