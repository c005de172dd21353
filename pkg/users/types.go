package users

import (
	"errors"
	"time"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/idp"
	"github.com/pantheon-ops/tenantd/pkg/license"
	"github.com/pantheon-ops/tenantd/pkg/notify"
)

// ErrNotFound is returned when the requested principal does not exist.
var ErrNotFound = errors.New("users: principal not found")

// SideEffect records the outcome of a best-effort external call for the
// caller to log. It never carries a fatal error.
type SideEffect struct {
	Outcome idp.Outcome `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
}

// CreateUserRequest carries the fields of a new principal.
type CreateUserRequest struct {
	AccountID     string     `json:"account_id"`
	EnterpriseID  string     `json:"enterprise_id,omitempty"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	AssignedRole  string     `json:"assigned_role,omitempty"`
	WorkstreamIDs []string   `json:"workstream_ids,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
}

// CreateUserResult is the outcome of a successful creation. Capacity is the
// post-creation snapshot advanced locally, not re-queried.
type CreateUserResult struct {
	Principal    *directory.Principal `json:"principal"`
	Capacity     license.Capacity     `json:"capacity"`
	ProviderSync SideEffect           `json:"provider_sync"`
	Notification *notify.SendResult   `json:"notification,omitempty"`
}

// UpdateUserRequest carries a partial principal update; nil fields are left
// untouched.
type UpdateUserRequest struct {
	FirstName    *string                    `json:"first_name,omitempty"`
	LastName     *string                    `json:"last_name,omitempty"`
	AssignedRole *string                    `json:"assigned_role,omitempty"`
	Status       *directory.PrincipalStatus `json:"status,omitempty"`
	EndDate      *time.Time                 `json:"end_date,omitempty"`
	ClearEndDate bool                       `json:"clear_end_date,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateUserRequest) Empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.AssignedRole == nil &&
		r.Status == nil && r.EndDate == nil && !r.ClearEndDate
}

// UpdateUserResult is the outcome of an update.
type UpdateUserResult struct {
	Principal    *directory.Principal `json:"principal"`
	ProviderSync SideEffect           `json:"provider_sync"`
}

// DeleteUserResult is the outcome of a deletion.
type DeleteUserResult struct {
	ItemsDeleted   int        `json:"items_deleted"`
	ProviderDelete SideEffect `json:"provider_delete"`
}
