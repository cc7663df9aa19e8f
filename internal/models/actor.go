package models

import "github.com/google/uuid"

// RoleAdmin grants access to every booking and to lifecycle operations
const RoleAdmin = "admin"

// Actor is the authenticated user performing an operation
type Actor struct {
	UserID uuid.UUID
	Email  string
	Roles  []string
}

// HasRole reports whether the actor carries the role
func (a *Actor) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor is an administrator
func (a *Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// IDPtr returns the actor's user id, or nil for anonymous callers
func (a *Actor) IDPtr() *uuid.UUID {
	if a == nil {
		return nil
	}
	id := a.UserID
	return &id
}

// RequestMeta describes the HTTP request an operation came from
type RequestMeta struct {
	IPAddress     string
	UserAgent     string
	CorrelationID string
}
