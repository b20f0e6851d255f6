package dto

import "strings"

type UserLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required,min=8"`
	FullName      string  `json:"full_name" validate:"required"`
	Role          string  `json:"role" validate:"required,oneof=IMMIGRATION INSTITUTION"`
	InstitutionID *string `json:"institution_id,omitempty" validate:"omitempty,uuid"`
}

type LoginResponse struct {
	Token     string              `json:"token"`
	ExpiresIn int64               `json:"expires_in"`
	User      UserProfileResponse `json:"user"`
}

type UserProfileResponse struct {
	ID            uint    `json:"id"`
	Email         string  `json:"email"`
	FullName      string  `json:"full_name"`
	Role          string  `json:"role"`
	InstitutionID *string `json:"institution_id,omitempty"`
	Status        string  `json:"status"`
}

// AuthResponse is the decoded session token.
type AuthResponse struct {
	UserID        int     `json:"user_id"`
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	InstitutionID string  `json:"institution_id,omitempty"`
	Iat           float64 `json:"iat"`
	Expiry        float64 `json:"expiry"`
}

// Caller is the authenticated operator behind a request.
type Caller struct {
	UserID        uint
	Email         string
	Role          string
	InstitutionID string
}

func (c Caller) IsImmigration() bool {
	return strings.EqualFold(c.Role, "IMMIGRATION")
}

// CanAccessInstitution reports whether the caller may act on records
// owned by institutionID.
func (c Caller) CanAccessInstitution(institutionID string) bool {
	if c.UserID == 0 {
		return false
	}
	if c.IsImmigration() {
		return true
	}
	return c.InstitutionID != "" && c.InstitutionID == institutionID
}
