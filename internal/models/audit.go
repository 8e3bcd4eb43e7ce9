package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEventType is the closed set of audit categories
type AuditEventType string

const (
	AuditEventAuth     AuditEventType = "auth"
	AuditEventData     AuditEventType = "data"
	AuditEventSecurity AuditEventType = "security"
	AuditEventError    AuditEventType = "error"
)

// ParseAuditEventType validates an audit category
func ParseAuditEventType(s string) (AuditEventType, bool) {
	switch t := AuditEventType(s); t {
	case AuditEventAuth, AuditEventData, AuditEventSecurity, AuditEventError:
		return t, true
	}
	return "", false
}

// AuditLog represents an append-only audit log entry
type AuditLog struct {
	ID        int64           `json:"id" db:"id"`
	EventType AuditEventType  `json:"event_type" db:"event_type"`
	Action    string          `json:"action" db:"action"`
	UserID    uuid.NullUUID   `json:"user_id" db:"user_id"`
	IPAddress NullString      `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent NullString      `json:"user_agent,omitempty" db:"user_agent"`
	Details   json.RawMessage `json:"details" db:"details"`
	CreatedAt time.Time       `json:"timestamp" db:"created_at"`
}

// AuditLogRequest is the input of the audit-log function
type AuditLogRequest struct {
	EventType string                 `json:"event_type"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details"`
	UserID    string                 `json:"user_id"`
	Timestamp *time.Time             `json:"timestamp"`
}

// RateLimitedAction is a rate-limit policy row
type RateLimitedAction struct {
	ActionType    string `json:"action_type" db:"action_type"`
	MaxRequests   int    `json:"max_requests" db:"max_requests"`
	WindowMinutes int    `json:"window_minutes" db:"window_minutes"`
}

// RefreshToken represents a stored, hashed refresh token
type RefreshToken struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"` // Never expose
	IPAddress  NullString `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  NullString `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt NullTime   `json:"last_used_at,omitempty" db:"last_used_at"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	RevokedAt  NullTime   `json:"revoked_at,omitempty" db:"revoked_at"`
}
