package models

import "fmt"

// Role is the access level tag of a profile
type Role string

const (
	RoleClient Role = "client"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// ParseRole converts a stored or requested role name into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleClient, RoleDriver, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// IsAdmin reports whether the role carries administrator access
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Capability names an action gated by role
type Capability string

const (
	CapViewOwnBookings      Capability = "view_own_bookings"
	CapViewAssignedBookings Capability = "view_assigned_bookings"
	CapViewAllBookings      Capability = "view_all_bookings"
	CapManageBookings       Capability = "manage_bookings"
	CapReviewApplications   Capability = "review_applications"
	CapManageProfiles       Capability = "manage_profiles"
	CapViewNotifications    Capability = "view_notifications"
	CapViewAuditLog         Capability = "view_audit_log"
)

// rolePolicy is the only place role-to-capability decisions are made.
var rolePolicy = map[Role]map[Capability]bool{
	RoleClient: {
		CapViewOwnBookings: true,
	},
	RoleDriver: {
		CapViewOwnBookings:      true,
		CapViewAssignedBookings: true,
	},
	RoleAdmin: {
		CapViewOwnBookings:      true,
		CapViewAssignedBookings: true,
		CapViewAllBookings:      true,
		CapManageBookings:       true,
		CapReviewApplications:   true,
		CapManageProfiles:       true,
		CapViewNotifications:    true,
		CapViewAuditLog:         true,
	},
}

// Can reports whether role r holds capability c
func Can(r Role, c Capability) bool {
	return rolePolicy[r][c]
}
