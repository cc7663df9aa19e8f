package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultChildPriceRatio is applied to the adult price when a package has no child price
var DefaultChildPriceRatio = decimal.NewFromFloat(0.7)

// TravelPackage is the bookable product. It is owned by the content management
// side of the platform and is read-only here.
type TravelPackage struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	Title          string              `json:"title" db:"title"`
	Destination    string              `json:"destination" db:"destination"`
	Price          decimal.Decimal     `json:"price" db:"price"`
	ChildPrice     decimal.NullDecimal `json:"child_price" db:"child_price"`
	MinTravelers   int                 `json:"min_travelers" db:"min_travelers"`
	MaxTravelers   int                 `json:"max_travelers" db:"max_travelers"`
	AvailableSlots *int                `json:"available_slots,omitempty" db:"available_slots"`
	StartDate      *time.Time          `json:"start_date,omitempty" db:"start_date"`
	EndDate        *time.Time          `json:"end_date,omitempty" db:"end_date"`
	IsActive       bool                `json:"is_active" db:"is_active"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// EffectiveChildPrice returns the child unit price, falling back to 70% of the adult price.
// The fallback is not rounded; line totals are rounded once after multiplying.
func (p *TravelPackage) EffectiveChildPrice() decimal.Decimal {
	if p.ChildPrice.Valid {
		return p.ChildPrice.Decimal
	}
	return p.Price.Mul(DefaultChildPriceRatio)
}

// HasLimitedSlots reports whether the package caps travelers per travel date
func (p *TravelPackage) HasLimitedSlots() bool {
	return p.AvailableSlots != nil
}

// CheckTravelDate verifies the date is in the future and inside the package validity window
func (p *TravelPackage) CheckTravelDate(travelDate, now time.Time) error {
	day := DateOnly(travelDate)
	today := DateOnly(now)

	if !day.After(today) {
		return NewValidationError("travel_date", "travel date must be after today")
	}
	if p.StartDate != nil && day.Before(DateOnly(*p.StartDate)) {
		return NewValidationError("travel_date",
			"travel date is before the package start date "+DateOnly(*p.StartDate).Format(DateLayout))
	}
	if p.EndDate != nil && day.After(DateOnly(*p.EndDate)) {
		return NewValidationError("travel_date",
			"travel date is after the package end date "+DateOnly(*p.EndDate).Format(DateLayout))
	}
	return nil
}

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight of its UTC calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
