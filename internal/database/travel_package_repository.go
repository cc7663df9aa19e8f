package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TravelPackageRepository reads travel packages
type TravelPackageRepository struct {
	q querier
}

// NewTravelPackageRepository creates a new TravelPackageRepository
func NewTravelPackageRepository(db *sqlx.DB) *TravelPackageRepository {
	return &TravelPackageRepository{q: db}
}

// GetPackage retrieves a travel package by ID
func (r *TravelPackageRepository) GetPackage(ctx context.Context, id uuid.UUID) (*models.TravelPackage, error) {
	pkg := &models.TravelPackage{}
	err := r.q.GetContext(ctx, pkg, `
		SELECT id, title, destination, price, child_price, min_travelers, max_travelers,
		       available_slots, start_date, end_date, is_active, created_at, updated_at
		FROM travel_packages
		WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to fetch travel package: %w", err)
	}
	return pkg, nil
}
