package services

import (
	"context"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Group discount tiers by party size, largest first
var discountTiers = []struct {
	minTravelers int
	percentage   int
}{
	{20, 15},
	{10, 10},
	{5, 5},
}

var (
	processingFeeRate = decimal.RequireFromString("0.015")
	processingFeeFlat = decimal.NewFromInt(100)
	processingFeeCap  = decimal.NewFromInt(2000)
	hundred           = decimal.NewFromInt(100)
)

// DiscountPercentage returns the group discount for a party size
func DiscountPercentage(travelers int) int {
	for _, tier := range discountTiers {
		if travelers >= tier.minTravelers {
			return tier.percentage
		}
	}
	return 0
}

// ValidateParty checks traveler counts before anything is priced
func ValidateParty(adults, children int) error {
	if adults < 0 {
		return models.NewValidationError("number_of_adults", "cannot be negative")
	}
	if children < 0 {
		return models.NewValidationError("number_of_children", "cannot be negative")
	}
	if adults+children < 1 {
		return models.NewValidationError("number_of_adults", "at least one traveler is required")
	}
	return nil
}

// CalculatePrice prices a party against a package. The party size must fall within the
// package's traveler limits; the group discount is applied to the subtotal.
func CalculatePrice(pkg *models.TravelPackage, adults, children int) (*models.PriceBreakdown, error) {
	if err := ValidateParty(adults, children); err != nil {
		return nil, err
	}

	travelers := adults + children
	if travelers < pkg.MinTravelers || travelers > pkg.MaxTravelers {
		return nil, &models.PartySizeError{Requested: travelers, Min: pkg.MinTravelers, Max: pkg.MaxTravelers}
	}

	adultPrice := pkg.Price.Round(2)
	childPrice := pkg.EffectiveChildPrice()

	adultTotal := adultPrice.Mul(decimal.NewFromInt(int64(adults))).Round(2)
	childTotal := childPrice.Mul(decimal.NewFromInt(int64(children))).Round(2)
	subtotal := adultTotal.Add(childTotal)

	percentage := DiscountPercentage(travelers)
	discount := subtotal.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred).Round(2)

	return &models.PriceBreakdown{
		PackageID:          pkg.ID,
		NumberOfAdults:     adults,
		NumberOfChildren:   children,
		NumberOfTravelers:  travelers,
		AdultUnitPrice:     adultPrice,
		ChildUnitPrice:     childPrice.Round(2),
		AdultTotal:         adultTotal,
		ChildTotal:         childTotal,
		Subtotal:           subtotal,
		DiscountPercentage: percentage,
		DiscountAmount:     discount,
		TotalAmount:        subtotal.Sub(discount),
	}, nil
}

// ProcessingFee quotes the gateway fee for an amount: 1.5% plus 100, capped at 2000
func ProcessingFee(amount decimal.Decimal) (*models.ProcessingFeeQuote, error) {
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}

	fee := amount.Mul(processingFeeRate).Add(processingFeeFlat)
	if fee.GreaterThan(processingFeeCap) {
		fee = processingFeeCap
	}
	fee = fee.Round(2)

	return &models.ProcessingFeeQuote{
		Amount:        amount.Round(2),
		ProcessingFee: fee,
		Total:         amount.Round(2).Add(fee),
	}, nil
}

// PackageReader loads travel packages
type PackageReader interface {
	GetPackage(ctx context.Context, id uuid.UUID) (*models.TravelPackage, error)
}

// PricingService quotes bookings without persisting anything
type PricingService struct {
	packages PackageReader
}

// NewPricingService creates a new PricingService
func NewPricingService(packages PackageReader) *PricingService {
	return &PricingService{packages: packages}
}

// Quote prices a party for an active package
func (s *PricingService) Quote(ctx context.Context, packageID uuid.UUID, adults, children int) (*models.PriceBreakdown, error) {
	if err := ValidateParty(adults, children); err != nil {
		return nil, err
	}

	pkg, err := s.packages.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, models.ErrPackageUnavailable
	}

	return CalculatePrice(pkg, adults, children)
}
