package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx so repositories can run
// inside or outside a transaction
type querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Tx is the set of operations available inside one database transaction.
// Row-locking reads (ForUpdate) hold their lock until the transaction ends.
type Tx interface {
	// LockCapacity serialises capacity checks for one package and travel date
	LockCapacity(ctx context.Context, packageID uuid.UUID, travelDate time.Time) error
	SumActiveTravelers(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (int, error)
	BookingReferenceExists(ctx context.Context, reference string) (bool, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	InsertTraveler(ctx context.Context, traveler *models.Traveler) error
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateBookingLifecycle(ctx context.Context, booking *models.Booking) error
	UpdateBookingFinancials(ctx context.Context, booking *models.Booking) error
	CountTravelers(ctx context.Context, bookingID uuid.UUID) (int, error)
	GetTravelerForUpdate(ctx context.Context, bookingID, travelerID uuid.UUID) (*models.Traveler, error)
	UpdateTraveler(ctx context.Context, traveler *models.Traveler) error
	DeleteTraveler(ctx context.Context, bookingID, travelerID uuid.UUID) error

	TransactionReferenceExists(ctx context.Context, reference string) (bool, error)
	InsertTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	// GetTransactionForUpdate matches either the internal or the gateway reference
	GetTransactionForUpdate(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	UpdateTransaction(ctx context.Context, txn *models.PaymentTransaction) error
	SumSettledPayments(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error)
}

// Store is the persistence boundary of the booking engine
type Store interface {
	// WithTx runs fn in a transaction, committing when fn returns nil
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetPackage(ctx context.Context, id uuid.UUID) (*models.TravelPackage, error)
	SumActiveTravelers(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (int, error)

	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter, limit, offset int) ([]models.Booking, error)
	CountBookings(ctx context.Context, filter models.BookingFilter) (int, error)
	ListTravelers(ctx context.Context, bookingID uuid.UUID) ([]models.Traveler, error)

	GetTransaction(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	ListTransactions(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentTransaction, error)
	AttachGatewayReference(ctx context.Context, transactionID uuid.UUID, gatewayReference string, response models.JSONB) error
}

// txStore binds the repositories to an open transaction
type txStore struct {
	*BookingRepository
	*PaymentTransactionRepository
}

// PostgresStore implements Store on top of the sqlx repositories
type PostgresStore struct {
	*BookingRepository
	*TravelPackageRepository
	*PaymentTransactionRepository

	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		BookingRepository:            NewBookingRepository(db),
		TravelPackageRepository:      NewTravelPackageRepository(db),
		PaymentTransactionRepository: NewPaymentTransactionRepository(db),
		db:                           db,
	}
}

// WithTx runs fn inside a READ COMMITTED transaction. Serialization failures and
// unique violations surface as models.ErrSerializationFailure and
// models.ErrDuplicateReference so callers can retry.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{
		BookingRepository:            &BookingRepository{q: tx},
		PaymentTransactionRepository: &PaymentTransactionRepository{q: tx},
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classifyError(err))
	}
	return nil
}

// Ping checks the underlying connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
