package services

import (
	"context"
	"testing"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountPercentage_Boundaries(t *testing.T) {
	tests := []struct {
		travelers int
		expected  int
	}{
		{1, 0},
		{4, 0},
		{5, 5},
		{9, 5},
		{10, 10},
		{19, 10},
		{20, 15},
		{45, 15},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DiscountPercentage(tt.travelers), "travelers=%d", tt.travelers)
	}
}

func TestCalculatePrice(t *testing.T) {
	pkg := &models.TravelPackage{
		Price:        decimal.RequireFromString("150000.00"),
		ChildPrice:   decimal.NewNullDecimal(decimal.RequireFromString("90000.00")),
		MinTravelers: 1,
		MaxTravelers: 30,
	}

	t.Run("no discount below five", func(t *testing.T) {
		price, err := CalculatePrice(pkg, 2, 2)
		require.NoError(t, err)

		assert.Equal(t, "300000.00", price.AdultTotal.StringFixed(2))
		assert.Equal(t, "180000.00", price.ChildTotal.StringFixed(2))
		assert.Equal(t, "480000.00", price.Subtotal.StringFixed(2))
		assert.Equal(t, 0, price.DiscountPercentage)
		assert.True(t, price.DiscountAmount.IsZero())
		assert.Equal(t, "480000.00", price.TotalAmount.StringFixed(2))
	})

	t.Run("group discount on the subtotal", func(t *testing.T) {
		price, err := CalculatePrice(pkg, 8, 2)
		require.NoError(t, err)

		// 8*150000 + 2*90000 = 1380000, 10% off
		assert.Equal(t, 10, price.DiscountPercentage)
		assert.Equal(t, "138000.00", price.DiscountAmount.StringFixed(2))
		assert.Equal(t, "1242000.00", price.TotalAmount.StringFixed(2))
		assert.True(t, price.Subtotal.Sub(price.DiscountAmount).Equal(price.TotalAmount))
	})

	t.Run("discount rounds to two places", func(t *testing.T) {
		odd := &models.TravelPackage{
			Price:        decimal.RequireFromString("333.33"),
			MinTravelers: 1,
			MaxTravelers: 30,
		}
		price, err := CalculatePrice(odd, 5, 0)
		require.NoError(t, err)

		// 1666.65 * 5% = 83.3325
		assert.Equal(t, "83.33", price.DiscountAmount.String())
		assert.Equal(t, "1583.32", price.TotalAmount.String())
	})

	t.Run("child price falls back to seventy percent", func(t *testing.T) {
		noChild := &models.TravelPackage{
			Price:        decimal.RequireFromString("1000.00"),
			MinTravelers: 1,
			MaxTravelers: 10,
		}
		price, err := CalculatePrice(noChild, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, "700.00", price.ChildUnitPrice.StringFixed(2))
		assert.Equal(t, "1700.00", price.TotalAmount.StringFixed(2))
	})

	t.Run("child line total is rounded once", func(t *testing.T) {
		odd := &models.TravelPackage{
			Price:        decimal.RequireFromString("10.05"),
			MinTravelers: 1,
			MaxTravelers: 10,
		}
		price, err := CalculatePrice(odd, 0, 3)
		require.NoError(t, err)

		// 10.05 * 0.7 * 3 = 21.105
		assert.Equal(t, "7.04", price.ChildUnitPrice.StringFixed(2))
		assert.Equal(t, "21.11", price.ChildTotal.StringFixed(2))
		assert.Equal(t, "21.11", price.Subtotal.StringFixed(2))
		assert.Equal(t, "21.11", price.TotalAmount.StringFixed(2))
	})

	t.Run("party outside package limits", func(t *testing.T) {
		small := &models.TravelPackage{Price: decimal.NewFromInt(100), MinTravelers: 2, MaxTravelers: 4}

		_, err := CalculatePrice(small, 1, 0)
		var sizeErr *models.PartySizeError
		require.ErrorAs(t, err, &sizeErr)
		assert.Equal(t, 1, sizeErr.Requested)
		assert.Contains(t, err.Error(), "minimum 2")

		_, err = CalculatePrice(small, 3, 2)
		require.ErrorAs(t, err, &sizeErr)
		assert.Contains(t, err.Error(), "maximum 4")
	})

	t.Run("invalid party", func(t *testing.T) {
		_, err := CalculatePrice(pkg, 0, 0)
		var validationErr *models.ValidationError
		assert.ErrorAs(t, err, &validationErr)

		_, err = CalculatePrice(pkg, -1, 3)
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestProcessingFee(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		fee      string
		total    string
		hasError bool
	}{
		{name: "small amount", amount: "1000", fee: "115.00", total: "1115.00"},
		{name: "just under the cap", amount: "126600", fee: "1999.00", total: "128599.00"},
		{name: "capped", amount: "500000", fee: "2000.00", total: "502000.00"},
		{name: "zero", amount: "0", hasError: true},
		{name: "negative", amount: "-10", hasError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := ProcessingFee(decimal.RequireFromString(tt.amount))
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fee, quote.ProcessingFee.StringFixed(2))
			assert.Equal(t, tt.total, quote.Total.StringFixed(2))
		})
	}
}

func TestPricingService_Quote(t *testing.T) {
	store := newMemStore()
	pkg := store.addPackage("50000", nil)
	service := NewPricingService(store)

	price, err := service.Quote(context.Background(), pkg.ID, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, "237500.00", price.TotalAmount.StringFixed(2))

	inactive := store.addPackage("50000", nil)
	store.mu.Lock()
	p := store.packages[inactive.ID]
	p.IsActive = false
	store.packages[inactive.ID] = p
	store.mu.Unlock()

	_, err = service.Quote(context.Background(), inactive.ID, 1, 0)
	assert.ErrorIs(t, err, models.ErrPackageUnavailable)
}
