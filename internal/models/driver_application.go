package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the review state of a driver application
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// CanTransitionTo reports whether a review decision is allowed.
// Applications only ever leave pending.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return s == ApplicationStatusPending && (next == ApplicationStatusApproved || next == ApplicationStatusRejected)
}

// DriverApplication is a request to drive for the service
type DriverApplication struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	UserID          uuid.UUID         `json:"user_id" db:"user_id"`
	YearsExperience int               `json:"years_experience" db:"years_experience"`
	LicenseNumber   string            `json:"license_number" db:"license_number"`
	AboutText       NullString        `json:"about_text" db:"about_text"`
	Status          ApplicationStatus `json:"status" db:"status"`
	ReviewedBy      uuid.NullUUID     `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt      NullTime          `json:"reviewed_at" db:"reviewed_at"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// DriverApplicationWithProfile joins the applicant's identity for admin review
type DriverApplicationWithProfile struct {
	DriverApplication
	ApplicantEmail     string     `json:"applicant_email" db:"applicant_email"`
	ApplicantFirstName NullString `json:"applicant_first_name" db:"applicant_first_name"`
	ApplicantLastName  NullString `json:"applicant_last_name" db:"applicant_last_name"`
}

// CreateDriverApplicationRequest is submitted by an applicant.
// Email and Password are only used when the caller is not signed in.
type CreateDriverApplicationRequest struct {
	Email           string `json:"email,omitempty"`
	Password        string `json:"password,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	YearsExperience int    `json:"years_experience"`
	LicenseNumber   string `json:"license_number"`
	AboutText       string `json:"about_text"`
}
