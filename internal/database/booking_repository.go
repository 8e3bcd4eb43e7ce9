package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
)

const bookingColumns = `id, user_id, pickup_location, dropoff_location, pickup_date, pickup_time,
	passengers, status, special_instructions, payment_status, payment_amount, estimated_cost,
	distance_text, checkout_session_id, assigned_driver_id, created_at, updated_at`

// Execer is satisfied by both DB and *sqlx.Tx so writes can join a transaction
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking
func (r *BookingRepository) Create(b *models.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = models.PaymentStatusPending
	}

	query := `
		INSERT INTO bookings (
			id, user_id, pickup_location, dropoff_location, pickup_date, pickup_time,
			passengers, status, special_instructions, payment_status, estimated_cost, distance_text
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(query,
		b.ID, b.UserID, b.PickupLocation, b.DropoffLocation, b.PickupDate, b.PickupTime,
		b.Passengers, b.Status, b.SpecialInstructions, b.PaymentStatus, b.EstimatedCost, b.DistanceText,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking, returning nil when it does not exist
func (r *BookingRepository) GetByID(id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := r.db.Get(&b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListByUser returns the bookings owned by a profile, newest first
func (r *BookingRepository) ListByUser(userID uuid.UUID, limit int) ([]models.Booking, error) {
	return r.list(`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, NormalizeLimit(limit))
}

// ListByDriver returns the bookings assigned to a driver, soonest pickup first
func (r *BookingRepository) ListByDriver(driverID uuid.UUID, limit int) ([]models.Booking, error) {
	return r.list(`SELECT `+bookingColumns+` FROM bookings WHERE assigned_driver_id = $1 ORDER BY pickup_date ASC, pickup_time ASC LIMIT $2`,
		driverID, NormalizeLimit(limit))
}

// List returns all bookings, optionally filtered by status
func (r *BookingRepository) List(filter models.BookingFilter) ([]models.Booking, error) {
	limit := NormalizeLimit(filter.Limit)
	if filter.Status != "" {
		return r.list(`SELECT `+bookingColumns+` FROM bookings WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
			filter.Status, limit)
	}
	return r.list(`SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *BookingRepository) list(query string, args ...interface{}) ([]models.Booking, error) {
	bookings := []models.Booking{}
	if err := r.db.Select(&bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// CountByStatus returns the number of bookings in each status
func (r *BookingRepository) CountByStatus() (map[models.BookingStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.BookingStatus]int)
	for rows.Next() {
		var status models.BookingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// UpdateDetails changes trip fields while the booking is still editable
func (r *BookingRepository) UpdateDetails(id uuid.UUID, pickup, dropoff *string, date *time.Time, slot, instructions *string) error {
	query := `
		UPDATE bookings SET
			pickup_location      = COALESCE($2, pickup_location),
			dropoff_location     = COALESCE($3, dropoff_location),
			pickup_date          = COALESCE($4, pickup_date),
			pickup_time          = COALESCE($5, pickup_time),
			special_instructions = COALESCE($6, special_instructions),
			updated_at           = NOW()
		WHERE id = $1 AND status IN ('pending', 'pending_payment')
	`

	result, err := r.db.Exec(query, id, pickup, dropoff, date, slot, instructions)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	return expectOneRow(result, "booking")
}

// UpdateStatus moves a booking from one status to another.
// The update only applies if the row is still in the expected status.
func (r *BookingRepository) UpdateStatus(id uuid.UUID, from, to models.BookingStatus) error {
	result, err := r.db.Exec(
		`UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	return expectOneRow(result, "booking")
}

// AssignDriver sets the driver of a booking
func (r *BookingRepository) AssignDriver(id, driverID uuid.UUID) error {
	result, err := r.db.Exec(
		`UPDATE bookings SET assigned_driver_id = $2, updated_at = NOW() WHERE id = $1 AND status NOT IN ('cancelled', 'completed')`,
		id, driverID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign driver: %w", err)
	}

	return expectOneRow(result, "booking")
}

// SetCheckoutSession records the hosted checkout session created for a booking
func (r *BookingRepository) SetCheckoutSession(id uuid.UUID, sessionID string) error {
	result, err := r.db.Exec(
		`UPDATE bookings SET checkout_session_id = $2, updated_at = NOW() WHERE id = $1`,
		id, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to store checkout session: %w", err)
	}

	return expectOneRow(result, "booking")
}

// MarkPaid confirms a booking whose payment is still pending.
// It reports false when the booking was already finalized.
func (r *BookingRepository) MarkPaid(q Execer, id uuid.UUID, amount string) (bool, error) {
	result, err := q.Exec(`
		UPDATE bookings SET
			payment_status = 'completed',
			payment_amount = $2,
			status         = 'confirmed',
			updated_at     = NOW()
		WHERE id = $1 AND payment_status = 'pending' AND status IN ('pending', 'pending_payment')
	`, id, amount)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking paid: %w", err)
	}

	return affected(result)
}

// MarkPaymentFailed cancels a booking whose payment is still pending
func (r *BookingRepository) MarkPaymentFailed(q Execer, id uuid.UUID) (bool, error) {
	result, err := q.Exec(`
		UPDATE bookings SET
			payment_status = 'failed',
			status         = 'cancelled',
			updated_at     = NOW()
		WHERE id = $1 AND payment_status = 'pending' AND status IN ('pending', 'pending_payment')
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking payment failed: %w", err)
	}

	return affected(result)
}

// ExpireStalePending cancels unpaid checkouts created before cutoff and returns their ids
func (r *BookingRepository) ExpireStalePending(cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(`
		UPDATE bookings SET
			status         = 'cancelled',
			payment_status = 'failed',
			updated_at     = NOW()
		WHERE status = 'pending_payment' AND payment_status = 'pending' AND created_at < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending bookings: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired booking: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func affected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// NormalizeLimit clamps a page size to (0, 500], defaulting to 100
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
