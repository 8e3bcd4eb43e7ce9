package database

import "fmt"

// WebhookEventRepository records provider event ids that have been applied
type WebhookEventRepository struct {
	db DB
}

// NewWebhookEventRepository creates a new WebhookEventRepository
func NewWebhookEventRepository(db DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// MarkProcessed records eventID. It reports false if the event was seen before,
// in which case the caller must not apply it again.
func (r *WebhookEventRepository) MarkProcessed(q Execer, eventID, eventType string) (bool, error) {
	result, err := q.Exec(`
		INSERT INTO processed_webhook_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return affected(result)
}
