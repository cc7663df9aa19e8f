package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceBreakdown is the result of pricing a party against a package
type PriceBreakdown struct {
	PackageID          uuid.UUID       `json:"package_id"`
	NumberOfAdults     int             `json:"number_of_adults"`
	NumberOfChildren   int             `json:"number_of_children"`
	NumberOfTravelers  int             `json:"number_of_travelers"`
	AdultUnitPrice     decimal.Decimal `json:"adult_unit_price"`
	ChildUnitPrice     decimal.Decimal `json:"child_unit_price"`
	AdultTotal         decimal.Decimal `json:"adult_total"`
	ChildTotal         decimal.Decimal `json:"child_total"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage int             `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
}

// ProcessingFeeQuote is the gateway fee shown to a payer before checkout
type ProcessingFeeQuote struct {
	Amount        decimal.Decimal `json:"amount"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	Total         decimal.Decimal `json:"total"`
}

// AvailabilitySummary describes remaining capacity for a package on a date
type AvailabilitySummary struct {
	PackageID      uuid.UUID `json:"package_id"`
	TravelDate     string    `json:"travel_date"`
	Unlimited      bool      `json:"unlimited"`
	AvailableSlots *int      `json:"available_slots,omitempty"`
	BookedSlots    int       `json:"booked_slots"`
	RemainingSlots *int      `json:"remaining_slots,omitempty"`
}
