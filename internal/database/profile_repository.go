package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
)

const profileColumns = `id, email, password_hash, first_name, last_name, phone, role,
	mfa_enabled, mfa_secret, created_at, updated_at`

// ProfileRepository handles database operations for the profiles table
type ProfileRepository struct {
	db DB
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a new profile. Role defaults to client when empty.
func (r *ProfileRepository) Create(p *models.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Role == "" {
		p.Role = models.RoleClient
	}

	query := `
		INSERT INTO profiles (id, email, password_hash, first_name, last_name, phone, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(query,
		p.ID, p.Email, p.PasswordHash, p.FirstName, p.LastName, p.Phone, p.Role,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByID retrieves a profile by ID, returning nil when it does not exist
func (r *ProfileRepository) GetByID(id uuid.UUID) (*models.Profile, error) {
	return r.getOne(`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

// GetByEmail retrieves a profile by email (case-insensitive)
func (r *ProfileRepository) GetByEmail(email string) (*models.Profile, error) {
	return r.getOne(`SELECT `+profileColumns+` FROM profiles WHERE LOWER(email) = LOWER($1)`, email)
}

// GetFirstAdmin returns the oldest admin profile, the recipient of payment notifications
func (r *ProfileRepository) GetFirstAdmin() (*models.Profile, error) {
	return r.getOne(`SELECT `+profileColumns+` FROM profiles WHERE role = 'admin' ORDER BY created_at ASC LIMIT 1`)
}

func (r *ProfileRepository) getOne(query string, args ...interface{}) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.Get(&p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// List returns profiles, newest first
func (r *ProfileRepository) List(role models.Role, limit int) ([]models.Profile, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	profiles := []models.Profile{}
	var err error
	if role == "" {
		err = r.db.Select(&profiles, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		err = r.db.Select(&profiles, `SELECT `+profileColumns+` FROM profiles WHERE role = $1 ORDER BY created_at DESC LIMIT $2`, role, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	return profiles, nil
}

// UpdateContact updates the owner-editable fields. Nil pointers keep the current value.
func (r *ProfileRepository) UpdateContact(id uuid.UUID, req models.UpdateProfileRequest) error {
	query := `
		UPDATE profiles SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			phone      = COALESCE($4, phone),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, id, req.FirstName, req.LastName, req.Phone)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return expectOneRow(result, "profile")
}

// UpdateRole changes the role of a profile
func (r *ProfileRepository) UpdateRole(id uuid.UUID, role models.Role) error {
	result, err := r.db.Exec(`UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("failed to update profile role: %w", err)
	}

	return expectOneRow(result, "profile")
}

// SetMFASecret stores a pending TOTP secret without enabling MFA
func (r *ProfileRepository) SetMFASecret(id uuid.UUID, secret string) error {
	result, err := r.db.Exec(
		`UPDATE profiles SET mfa_secret = $2, mfa_enabled = FALSE, updated_at = NOW() WHERE id = $1`,
		id, secret,
	)
	if err != nil {
		return fmt.Errorf("failed to store mfa secret: %w", err)
	}

	return expectOneRow(result, "profile")
}

// EnableMFA marks MFA as enabled once a code has been verified
func (r *ProfileRepository) EnableMFA(id uuid.UUID) error {
	result, err := r.db.Exec(
		`UPDATE profiles SET mfa_enabled = TRUE, updated_at = NOW() WHERE id = $1 AND mfa_secret IS NOT NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to enable mfa: %w", err)
	}

	return expectOneRow(result, "profile")
}

// ErrNotFound is returned by mutations that matched no row
var ErrNotFound = errors.New("record not found")

func expectOneRow(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}
