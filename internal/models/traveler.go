package models

import (
	"time"

	"github.com/google/uuid"
)

// TravelerType classifies a traveler for pricing and documents
type TravelerType string

const (
	TravelerTypeAdult  TravelerType = "adult"
	TravelerTypeChild  TravelerType = "child"
	TravelerTypeInfant TravelerType = "infant"
)

// Traveler is a member of a booking's party
type Traveler struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	BookingID      uuid.UUID    `json:"booking_id" db:"booking_id"`
	FirstName      string       `json:"first_name" db:"first_name"`
	LastName       string       `json:"last_name" db:"last_name"`
	Email          *string      `json:"email,omitempty" db:"email"`
	Phone          *string      `json:"phone,omitempty" db:"phone"`
	DateOfBirth    *time.Time   `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender         *string      `json:"gender,omitempty" db:"gender"`
	PassportNumber *string      `json:"passport_number,omitempty" db:"passport_number"`
	PassportExpiry *time.Time   `json:"passport_expiry,omitempty" db:"passport_expiry"`
	Nationality    *string      `json:"nationality,omitempty" db:"nationality"`
	TravelerType   TravelerType `json:"traveler_type" db:"traveler_type"`
	SpecialNeeds   *string      `json:"special_needs,omitempty" db:"special_needs"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// TravelerRequest is the payload describing one traveler
type TravelerRequest struct {
	FirstName      string  `json:"first_name" binding:"required,max=100"`
	LastName       string  `json:"last_name" binding:"required,max=100"`
	Email          *string `json:"email,omitempty" binding:"omitempty,email"`
	Phone          *string `json:"phone,omitempty"`
	DateOfBirth    *string `json:"date_of_birth,omitempty"`
	Gender         *string `json:"gender,omitempty" binding:"omitempty,oneof=male female other"`
	PassportNumber *string `json:"passport_number,omitempty" binding:"omitempty,max=50"`
	PassportExpiry *string `json:"passport_expiry,omitempty"`
	Nationality    *string `json:"nationality,omitempty" binding:"omitempty,max=100"`
	TravelerType   *string `json:"traveler_type,omitempty" binding:"omitempty,oneof=adult child infant"`
	SpecialNeeds   *string `json:"special_needs,omitempty"`
}

// DetermineTravelerType derives the traveler type from age on the given day:
// 18 and over is an adult, 2 and over a child, anything younger an infant.
func DetermineTravelerType(dateOfBirth, on time.Time) TravelerType {
	age := on.Year() - dateOfBirth.Year()
	if on.Month() < dateOfBirth.Month() || (on.Month() == dateOfBirth.Month() && on.Day() < dateOfBirth.Day()) {
		age--
	}
	switch {
	case age >= 18:
		return TravelerTypeAdult
	case age >= 2:
		return TravelerTypeChild
	default:
		return TravelerTypeInfant
	}
}

// ToTraveler converts the request into a Traveler for a booking. Dates use DateLayout.
func (r *TravelerRequest) ToTraveler(bookingID uuid.UUID, travelDate, now time.Time) (*Traveler, error) {
	t := &Traveler{
		ID:             uuid.New(),
		BookingID:      bookingID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Phone:          r.Phone,
		Gender:         r.Gender,
		PassportNumber: r.PassportNumber,
		Nationality:    r.Nationality,
		SpecialNeeds:   r.SpecialNeeds,
		TravelerType:   TravelerTypeAdult,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if r.FirstName == "" {
		return nil, NewValidationError("first_name", "first name is required")
	}
	if r.LastName == "" {
		return nil, NewValidationError("last_name", "last name is required")
	}

	if r.DateOfBirth != nil && *r.DateOfBirth != "" {
		dob, err := time.Parse(DateLayout, *r.DateOfBirth)
		if err != nil {
			return nil, NewValidationError("date_of_birth", "must be a date in YYYY-MM-DD format")
		}
		if !dob.Before(DateOnly(now)) {
			return nil, NewValidationError("date_of_birth", "must be in the past")
		}
		t.DateOfBirth = &dob
		t.TravelerType = DetermineTravelerType(dob, travelDate)
	}

	if r.PassportExpiry != nil && *r.PassportExpiry != "" {
		expiry, err := time.Parse(DateLayout, *r.PassportExpiry)
		if err != nil {
			return nil, NewValidationError("passport_expiry", "must be a date in YYYY-MM-DD format")
		}
		if !expiry.After(DateOnly(travelDate)) {
			return nil, NewValidationError("passport_expiry", "passport must be valid beyond the travel date")
		}
		t.PassportExpiry = &expiry
	}

	if r.TravelerType != nil && *r.TravelerType != "" {
		t.TravelerType = TravelerType(*r.TravelerType)
	}

	return t, nil
}

// ApplyTo replaces the editable details of an existing traveler. Identity, booking and
// creation time are kept; dates are validated against the travel date as on creation.
func (r *TravelerRequest) ApplyTo(existing *Traveler, travelDate, now time.Time) (*Traveler, error) {
	updated, err := r.ToTraveler(existing.BookingID, travelDate, now)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	return updated, nil
}
