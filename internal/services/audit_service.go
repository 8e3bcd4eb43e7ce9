package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/database"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/utils"
)

// AuditService appends to the audit_logs table
type AuditService struct {
	db database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db database.DB) *AuditService {
	return &AuditService{
		db: db,
	}
}

// AuditEvent represents an event to be logged
type AuditEvent struct {
	EventType models.AuditEventType
	Action    string                 // e.g. "sign_in", "payment_confirmed"
	UserID    *uuid.UUID             // nil for anonymous callers
	IPAddress string
	UserAgent string
	Details   map[string]interface{} // stored as JSONB
	Timestamp time.Time              // zero means now
}

// ErrInvalidAuditEvent is returned for unknown event types or empty actions
var ErrInvalidAuditEvent = fmt.Errorf("invalid audit event")

// LogAuth logs an authentication event
func (s *AuditService) LogAuth(action string, userID *uuid.UUID, ipAddress, userAgent string, details map[string]interface{}) error {
	return s.Log(s.withDevice(AuditEvent{
		EventType: models.AuditEventAuth,
		Action:    action,
		UserID:    userID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details:   details,
	}))
}

// LogSecurity logs a security event such as a failed sign-in or rate limit hit
func (s *AuditService) LogSecurity(action string, userID *uuid.UUID, ipAddress, userAgent string, details map[string]interface{}) error {
	return s.Log(s.withDevice(AuditEvent{
		EventType: models.AuditEventSecurity,
		Action:    action,
		UserID:    userID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details:   details,
	}))
}

// LogData logs a data change made by a user or by the payment provider
func (s *AuditService) LogData(action string, userID *uuid.UUID, details map[string]interface{}) error {
	return s.Log(AuditEvent{
		EventType: models.AuditEventData,
		Action:    action,
		UserID:    userID,
		Details:   details,
	})
}

// LogError logs an unexpected failure
func (s *AuditService) LogError(action string, userID *uuid.UUID, cause error) error {
	details := map[string]interface{}{}
	if cause != nil {
		details["error"] = cause.Error()
	}
	return s.Log(AuditEvent{
		EventType: models.AuditEventError,
		Action:    action,
		UserID:    userID,
		Details:   details,
	})
}

// Record appends an event submitted through the audit-log function
func (s *AuditService) Record(req models.AuditLogRequest, ipAddress, userAgent string) error {
	eventType, ok := models.ParseAuditEventType(req.EventType)
	if !ok || req.Action == "" {
		return ErrInvalidAuditEvent
	}

	event := AuditEvent{
		EventType: eventType,
		Action:    req.Action,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Details:   req.Details,
	}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return ErrInvalidAuditEvent
		}
		event.UserID = &id
	}
	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}

	return s.Log(s.withDevice(event))
}

func (s *AuditService) withDevice(event AuditEvent) AuditEvent {
	if event.UserAgent == "" {
		return event
	}
	if event.Details == nil {
		event.Details = make(map[string]interface{})
	}
	event.Details["device_info"] = utils.ParseUserAgent(event.UserAgent)
	return event
}

// Log writes one event
func (s *AuditService) Log(event AuditEvent) error {
	if event.Details == nil {
		event.Details = map[string]interface{}{}
	}
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
		INSERT INTO audit_logs (event_type, action, user_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.Exec(
		query,
		event.EventType,
		event.Action,
		nullableUUID(event.UserID),
		models.NewNullString(event.IPAddress),
		models.NewNullString(event.UserAgent),
		details,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}

	return nil
}

// List returns the most recent audit entries
func (s *AuditService) List(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	logs := []models.AuditLog{}
	err := s.db.Select(&logs, `
		SELECT id, event_type, action, user_id, ip_address, user_agent, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(olderThan time.Duration) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM audit_logs WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
