package rbac

import (
	"github.com/pantheon-ops/tenantd/pkg/directory"
)

// MenuPermission is the caller-facing shape of one resolved menu entry.
type MenuPermission struct {
	MenuKey   string                    `json:"menu_key"`
	IsVisible bool                      `json:"is_visible"`
	CanCreate bool                      `json:"can_create"`
	CanView   bool                      `json:"can_view"`
	CanEdit   bool                      `json:"can_edit"`
	CanDelete bool                      `json:"can_delete"`
	Tabs      []directory.TabPermission `json:"tabs,omitempty"`
}

// ResolveResult is the outcome of a permission resolution. An unknown
// caller yields a zero-valued result rather than an error.
type ResolveResult struct {
	Permissions []MenuPermission `json:"permissions"`

	// RoleID and RoleName are display fields from the first resolved
	// role; they are not merged across roles.
	RoleID   string `json:"role_id,omitempty"`
	RoleName string `json:"role_name,omitempty"`

	// TechnicalUserID is the id of the matched principal, set even when
	// no roles resolved.
	TechnicalUserID string `json:"technical_user_id,omitempty"`
}
