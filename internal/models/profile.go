package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile represents a user identity record
type Profile struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never expose in JSON
	FirstName    NullString `json:"first_name" db:"first_name"`
	LastName     NullString `json:"last_name" db:"last_name"`
	Phone        NullString `json:"phone" db:"phone"`
	Role         Role       `json:"role" db:"role"`
	MFAEnabled   bool       `json:"mfa_enabled" db:"mfa_enabled"`
	MFASecret    NullString `json:"-" db:"mfa_secret"` // Never expose in JSON
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name, falling back to the email address
func (p *Profile) FullName() string {
	name := strings.TrimSpace(p.FirstName.String + " " + p.LastName.String)
	if name == "" {
		return p.Email
	}
	return name
}

// IsAdmin reports whether the profile has the admin role
func (p *Profile) IsAdmin() bool {
	return p.Role.IsAdmin()
}

// SignUpRequest represents a new account registration
type SignUpRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// SignInRequest represents an email/password sign-in
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	MFACode  string `json:"mfa_code,omitempty"`
}

// UpdateProfileRequest holds the fields an owner may change on their profile
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// UpdateRoleRequest is an admin role change
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}
