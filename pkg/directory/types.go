package directory

import (
	"time"
)

// PrincipalStatus represents the lifecycle status of a principal.
type PrincipalStatus string

const (
	StatusActive   PrincipalStatus = "active"
	StatusInactive PrincipalStatus = "inactive"
)

// Principal is an account-scoped technical user.
type Principal struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	EnterpriseID string          `json:"enterprise_id,omitempty"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        string          `json:"email"`
	AssignedRole string          `json:"assigned_role,omitempty"` // legacy role name
	Status       PrincipalStatus `json:"status"`

	// ExternalSubject is the identity provider's subject id. Once set it
	// is never cleared; only reconciliation may set it from empty.
	ExternalSubject string `json:"external_subject,omitempty"`

	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsActive reports whether the principal counts against the license and is
// eligible for permission resolution: status active and no end date in the
// past.
func (p *Principal) IsActive(now time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if p.EndDate != nil && !p.EndDate.After(now) {
		return false
	}
	return true
}

// WorkstreamAssignment links a principal to a workstream. It has no
// lifecycle of its own beyond the owning principal.
type WorkstreamAssignment struct {
	UserID       string `json:"user_id"`
	WorkstreamID string `json:"workstream_id"`
}

// GroupMembership links a principal to a group.
type GroupMembership struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
}

// GroupRoleLink links a group to a role.
type GroupRoleLink struct {
	GroupID string `json:"group_id"`
	RoleID  string `json:"role_id"`
}

// Role is the metadata record of a role; permissions are stored per menu as
// RolePermission rows under the role's partition.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TabPermission is the visibility flag of a named tab inside a menu.
type TabPermission struct {
	Key       string `json:"key"`
	IsVisible bool   `json:"is_visible"`
}

// RolePermission holds one role's flags for one menu key.
type RolePermission struct {
	RoleID    string          `json:"role_id"`
	MenuKey   string          `json:"menu_key"`
	IsVisible bool            `json:"is_visible"`
	CanCreate bool            `json:"can_create"`
	CanView   bool            `json:"can_view"`
	CanEdit   bool            `json:"can_edit"`
	CanDelete bool            `json:"can_delete"`
	Tabs      []TabPermission `json:"tabs,omitempty"`
}

// Account is a tenant: the top-level isolation boundary.
type Account struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EnterpriseID  string `json:"enterprise_id,omitempty"`
	LicensedUsers int    `json:"licensed_users"`
}

// Enterprise groups accounts under one umbrella organization.
type Enterprise struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
