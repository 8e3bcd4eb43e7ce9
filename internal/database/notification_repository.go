package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
)

// NotificationRepository handles database operations for the notifications table
type NotificationRepository struct {
	db DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification using q, which may be a transaction
func (r *NotificationRepository) Create(q Execer, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if len(n.Payload) == 0 {
		n.Payload = []byte("{}")
	}

	err := q.QueryRow(`
		INSERT INTO notifications (id, recipient_id, type, booking_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, n.ID, n.RecipientID, n.Type, n.BookingID, []byte(n.Payload)).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListByRecipient returns the notifications addressed to a profile, newest first
func (r *NotificationRepository) ListByRecipient(recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, recipient_id, type, booking_id, payload, read_at, created_at
		FROM notifications
		WHERE recipient_id = $1 AND ($2 = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3
	`

	notifications := []models.Notification{}
	if err := r.db.Select(&notifications, query, recipientID, unreadOnly, NormalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead marks a notification as read by its recipient
func (r *NotificationRepository) MarkRead(id, recipientID uuid.UUID) error {
	result, err := r.db.Exec(
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND recipient_id = $2`,
		id, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	return expectOneRow(result, "notification")
}
