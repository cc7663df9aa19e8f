package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BookingRepository handles booking and traveler database operations
type BookingRepository struct {
	q querier
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

const bookingColumns = `
	id, booking_reference, user_id, travel_package_id, travel_date,
	number_of_adults, number_of_children, number_of_travelers,
	subtotal, discount_amount, total_amount, amount_paid, amount_due,
	payment_status, booking_status,
	guest_first_name, guest_last_name, guest_email, guest_phone,
	special_requests, cancellation_reason, cancelled_by,
	cancelled_at, confirmed_at, completed_at, created_at, updated_at`

const travelerColumns = `
	id, booking_id, first_name, last_name, email, phone, date_of_birth, gender,
	passport_number, passport_expiry, nationality, traveler_type, special_needs,
	created_at, updated_at`

// ============================================================================
// CAPACITY
// ============================================================================

// CapacityLockKey derives the advisory lock key for a package and travel date
func CapacityLockKey(packageID uuid.UUID, travelDate time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(packageID.String()))
	h.Write([]byte("|"))
	h.Write([]byte(models.DateOnly(travelDate).Format(models.DateLayout)))
	return int64(h.Sum64())
}

// LockCapacity takes a transaction-scoped advisory lock for the package and date.
// The lock is released on commit or rollback.
func (r *BookingRepository) LockCapacity(ctx context.Context, packageID uuid.UUID, travelDate time.Time) error {
	_, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, CapacityLockKey(packageID, travelDate))
	if err != nil {
		return fmt.Errorf("failed to acquire capacity lock: %w", classifyError(err))
	}
	return nil
}

// SumActiveTravelers returns the number of travelers on non-cancelled bookings for a package and date
func (r *BookingRepository) SumActiveTravelers(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (int, error) {
	var total int
	err := r.q.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(number_of_travelers), 0)
		FROM bookings
		WHERE travel_package_id = $1
		  AND travel_date = $2
		  AND booking_status <> 'cancelled'`,
		packageID, models.DateOnly(travelDate))
	if err != nil {
		return 0, fmt.Errorf("failed to sum booked travelers: %w", classifyError(err))
	}
	return total, nil
}

// ============================================================================
// BOOKINGS
// ============================================================================

// BookingReferenceExists checks whether a booking reference is already taken
func (r *BookingRepository) BookingReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int
	err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, reference)
	if err != nil {
		return false, fmt.Errorf("failed to check reference uniqueness: %w", err)
	}
	return count > 0, nil
}

// InsertBooking inserts a new booking row
func (r *BookingRepository) InsertBooking(ctx context.Context, b *models.Booking) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO bookings (
			id, booking_reference, user_id, travel_package_id, travel_date,
			number_of_adults, number_of_children, number_of_travelers,
			subtotal, discount_amount, total_amount, amount_paid, amount_due,
			payment_status, booking_status,
			guest_first_name, guest_last_name, guest_email, guest_phone,
			special_requests, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15,
			$16, $17, $18, $19,
			$20, $21, $22
		)`,
		b.ID, b.BookingReference, b.UserID, b.TravelPackageID, models.DateOnly(b.TravelDate),
		b.NumberOfAdults, b.NumberOfChildren, b.NumberOfTravelers,
		b.Subtotal, b.DiscountAmount, b.TotalAmount, b.AmountPaid, b.AmountDue,
		b.PaymentStatus, b.BookingStatus,
		b.GuestFirstName, b.GuestLastName, b.GuestEmail, b.GuestPhone,
		b.SpecialRequests, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", classifyError(err))
	}
	return nil
}

func (r *BookingRepository) getBooking(ctx context.Context, query string, arg interface{}) (*models.Booking, error) {
	booking := &models.Booking{}
	if err := r.q.GetContext(ctx, booking, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", classifyError(err))
	}
	return booking, nil
}

// GetBooking retrieves a booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetBookingForUpdate retrieves a booking by ID and locks the row
func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

// GetBookingByReference retrieves a booking by its public reference
func (r *BookingRepository) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	return r.getBooking(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_reference = $1`, reference)
}

// ListBookingsByUser returns a user's bookings, newest first
func (r *BookingRepository) ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.q.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

const bookingFilterClause = `
		WHERE ($1 = '' OR booking_status = $1)
		  AND ($2 = '' OR payment_status = $2)`

// ListBookings returns all bookings matching the filter, newest first
func (r *BookingRepository) ListBookings(ctx context.Context, filter models.BookingFilter, limit, offset int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.q.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings`+bookingFilterClause+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		string(filter.BookingStatus), string(filter.PaymentStatus), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// CountBookings returns the number of bookings matching the filter
func (r *BookingRepository) CountBookings(ctx context.Context, filter models.BookingFilter) (int, error) {
	var count int
	err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings`+bookingFilterClause,
		string(filter.BookingStatus), string(filter.PaymentStatus))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// UpdateBookingLifecycle persists status transitions and their audit columns
func (r *BookingRepository) UpdateBookingLifecycle(ctx context.Context, b *models.Booking) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE bookings
		SET booking_status = $1,
		    confirmed_at = $2,
		    cancelled_at = $3,
		    cancelled_by = $4,
		    cancellation_reason = $5,
		    completed_at = $6,
		    updated_at = $7
		WHERE id = $8`,
		b.BookingStatus, b.ConfirmedAt, b.CancelledAt, b.CancelledBy, b.CancellationReason,
		b.CompletedAt, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", classifyError(err))
	}
	return expectOneRow(res, models.ErrBookingNotFound)
}

// UpdateBookingFinancials persists the payment projection recomputed from the ledger
func (r *BookingRepository) UpdateBookingFinancials(ctx context.Context, b *models.Booking) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE bookings
		SET amount_paid = $1,
		    amount_due = $2,
		    payment_status = $3,
		    updated_at = $4
		WHERE id = $5`,
		b.AmountPaid, b.AmountDue, b.PaymentStatus, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking payment: %w", classifyError(err))
	}
	return expectOneRow(res, models.ErrBookingNotFound)
}

// ============================================================================
// TRAVELERS
// ============================================================================

// InsertTraveler inserts a traveler for a booking
func (r *BookingRepository) InsertTraveler(ctx context.Context, t *models.Traveler) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO travelers (
			id, booking_id, first_name, last_name, email, phone, date_of_birth, gender,
			passport_number, passport_expiry, nationality, traveler_type, special_needs,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.BookingID, t.FirstName, t.LastName, t.Email, t.Phone, t.DateOfBirth, t.Gender,
		t.PassportNumber, t.PassportExpiry, t.Nationality, t.TravelerType, t.SpecialNeeds,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert traveler: %w", classifyError(err))
	}
	return nil
}

// ListTravelers returns the travelers of a booking in insertion order
func (r *BookingRepository) ListTravelers(ctx context.Context, bookingID uuid.UUID) ([]models.Traveler, error) {
	travelers := []models.Traveler{}
	err := r.q.SelectContext(ctx, &travelers,
		`SELECT `+travelerColumns+` FROM travelers WHERE booking_id = $1 ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list travelers: %w", err)
	}
	return travelers, nil
}

// GetTravelerForUpdate retrieves a traveler of a booking and locks the row
func (r *BookingRepository) GetTravelerForUpdate(ctx context.Context, bookingID, travelerID uuid.UUID) (*models.Traveler, error) {
	traveler := &models.Traveler{}
	err := r.q.GetContext(ctx, traveler,
		`SELECT `+travelerColumns+` FROM travelers WHERE id = $1 AND booking_id = $2 FOR UPDATE`, travelerID, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTravelerNotFound
		}
		return nil, fmt.Errorf("failed to fetch traveler: %w", classifyError(err))
	}
	return traveler, nil
}

// UpdateTraveler persists the editable traveler details
func (r *BookingRepository) UpdateTraveler(ctx context.Context, t *models.Traveler) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE travelers
		SET first_name = $1,
		    last_name = $2,
		    email = $3,
		    phone = $4,
		    date_of_birth = $5,
		    gender = $6,
		    passport_number = $7,
		    passport_expiry = $8,
		    nationality = $9,
		    traveler_type = $10,
		    special_needs = $11,
		    updated_at = $12
		WHERE id = $13 AND booking_id = $14`,
		t.FirstName, t.LastName, t.Email, t.Phone, t.DateOfBirth, t.Gender,
		t.PassportNumber, t.PassportExpiry, t.Nationality, t.TravelerType, t.SpecialNeeds,
		t.UpdatedAt, t.ID, t.BookingID)
	if err != nil {
		return fmt.Errorf("failed to update traveler: %w", classifyError(err))
	}
	return expectOneRow(res, models.ErrTravelerNotFound)
}

// CountTravelers returns the number of travelers recorded on a booking
func (r *BookingRepository) CountTravelers(ctx context.Context, bookingID uuid.UUID) (int, error) {
	var count int
	if err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM travelers WHERE booking_id = $1`, bookingID); err != nil {
		return 0, fmt.Errorf("failed to count travelers: %w", err)
	}
	return count, nil
}

// DeleteTraveler removes a traveler from a booking
func (r *BookingRepository) DeleteTraveler(ctx context.Context, bookingID, travelerID uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM travelers WHERE id = $1 AND booking_id = $2`, travelerID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete traveler: %w", err)
	}
	return expectOneRow(res, models.ErrTravelerNotFound)
}

func expectOneRow(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
