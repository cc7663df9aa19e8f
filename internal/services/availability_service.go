package services

import (
	"context"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/metrics"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
)

// capacityTx is the part of a store transaction the capacity check needs
type capacityTx interface {
	LockCapacity(ctx context.Context, packageID uuid.UUID, travelDate time.Time) error
	SumActiveTravelers(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (int, error)
}

// EnsureCapacity rejects a party that does not fit in the package's remaining slots for
// the travel date. It must run inside the transaction that inserts the booking; the
// capacity lock it takes is held until that transaction ends.
func EnsureCapacity(ctx context.Context, tx capacityTx, pkg *models.TravelPackage, requested int, travelDate time.Time) error {
	if !pkg.HasLimitedSlots() {
		return nil
	}

	if err := tx.LockCapacity(ctx, pkg.ID, travelDate); err != nil {
		return err
	}

	booked, err := tx.SumActiveTravelers(ctx, pkg.ID, travelDate)
	if err != nil {
		return err
	}

	return checkSlots(*pkg.AvailableSlots, booked, requested)
}

func checkSlots(slots, booked, requested int) error {
	if booked+requested <= slots {
		return nil
	}
	remaining := slots - booked
	if remaining < 0 {
		remaining = 0
	}
	metrics.IncCapacityRejection(models.CapacityScopeTravelDate)
	return &models.CapacityExceededError{
		Scope:     models.CapacityScopeTravelDate,
		Requested: requested,
		Remaining: remaining,
	}
}

// availabilityReader is the read side used for availability summaries
type availabilityReader interface {
	PackageReader
	SumActiveTravelers(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (int, error)
}

// AvailabilityService reports remaining capacity outside of a booking
type AvailabilityService struct {
	store availabilityReader
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(store availabilityReader) *AvailabilityService {
	return &AvailabilityService{store: store}
}

// Summary returns booked and remaining slots for a package on a date. The figure is a
// snapshot; only EnsureCapacity inside a booking transaction is authoritative.
func (s *AvailabilityService) Summary(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (*models.AvailabilitySummary, error) {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	booked, err := s.store.SumActiveTravelers(ctx, packageID, travelDate)
	if err != nil {
		return nil, err
	}

	summary := &models.AvailabilitySummary{
		PackageID:   packageID,
		TravelDate:  models.DateOnly(travelDate).Format(models.DateLayout),
		Unlimited:   !pkg.HasLimitedSlots(),
		BookedSlots: booked,
	}
	if pkg.HasLimitedSlots() {
		slots := *pkg.AvailableSlots
		remaining := slots - booked
		if remaining < 0 {
			remaining = 0
		}
		summary.AvailableSlots = &slots
		summary.RemainingSlots = &remaining
	}
	return summary, nil
}
