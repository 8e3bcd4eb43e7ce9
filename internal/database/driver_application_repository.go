package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/luxride/booking-portal/internal/models"
)

const applicationColumns = `a.id, a.user_id, a.years_experience, a.license_number, a.about_text,
	a.status, a.reviewed_by, a.reviewed_at, a.created_at, a.updated_at`

// DriverApplicationRepository handles database operations for driver_applications
type DriverApplicationRepository struct {
	db DB
}

// NewDriverApplicationRepository creates a new DriverApplicationRepository
func NewDriverApplicationRepository(db DB) *DriverApplicationRepository {
	return &DriverApplicationRepository{db: db}
}

// Create inserts a pending application
func (r *DriverApplicationRepository) Create(app *models.DriverApplication) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.Status = models.ApplicationStatusPending

	query := `
		INSERT INTO driver_applications (id, user_id, years_experience, license_number, about_text, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(query,
		app.ID, app.UserID, app.YearsExperience, app.LicenseNumber, app.AboutText, app.Status,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create driver application: %w", err)
	}

	return nil
}

// GetByID retrieves an application, returning nil when it does not exist
func (r *DriverApplicationRepository) GetByID(id uuid.UUID) (*models.DriverApplication, error) {
	var app models.DriverApplication
	err := r.db.Get(&app, `SELECT `+applicationColumns+` FROM driver_applications a WHERE a.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get driver application: %w", err)
	}
	return &app, nil
}

// GetLatestByUser returns the most recent application of a profile
func (r *DriverApplicationRepository) GetLatestByUser(userID uuid.UUID) (*models.DriverApplication, error) {
	var app models.DriverApplication
	err := r.db.Get(&app,
		`SELECT `+applicationColumns+` FROM driver_applications a WHERE a.user_id = $1 ORDER BY a.created_at DESC LIMIT 1`,
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get driver application: %w", err)
	}
	return &app, nil
}

// List returns applications with applicant details, optionally filtered by status
func (r *DriverApplicationRepository) List(status models.ApplicationStatus, limit int) ([]models.DriverApplicationWithProfile, error) {
	query := `
		SELECT ` + applicationColumns + `,
			p.email AS applicant_email, p.first_name AS applicant_first_name, p.last_name AS applicant_last_name
		FROM driver_applications a
		INNER JOIN profiles p ON p.id = a.user_id
		WHERE ($1 = '' OR a.status = $1)
		ORDER BY a.created_at DESC
		LIMIT $2
	`

	apps := []models.DriverApplicationWithProfile{}
	if err := r.db.Select(&apps, query, string(status), NormalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list driver applications: %w", err)
	}

	return apps, nil
}

// Review records a decision on a pending application. A non-empty grant is
// applied to the applicant's role in the same transaction; admins keep theirs.
// It reports false when the application was no longer pending.
func (r *DriverApplicationRepository) Review(id uuid.UUID, status models.ApplicationStatus, reviewerID uuid.UUID, grant models.Role) (bool, error) {
	var reviewed bool
	err := WithTx(r.db, func(tx *sqlx.Tx) error {
		result, err := tx.Exec(`
			UPDATE driver_applications SET
				status      = $2,
				reviewed_by = $3,
				reviewed_at = NOW(),
				updated_at  = NOW()
			WHERE id = $1 AND status = 'pending'
		`, id, status, reviewerID)
		if err != nil {
			return fmt.Errorf("failed to review driver application: %w", err)
		}
		if reviewed, err = affected(result); err != nil || !reviewed || grant == "" {
			return err
		}

		_, err = tx.Exec(`
			UPDATE profiles SET role = $2, updated_at = NOW()
			FROM driver_applications a
			WHERE a.id = $1 AND profiles.id = a.user_id AND profiles.role <> 'admin'
		`, id, grant)
		if err != nil {
			return fmt.Errorf("failed to grant applicant role: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return reviewed, nil
}
