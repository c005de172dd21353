package directory

import (
	"fmt"
	"time"

	"github.com/pantheon-ops/tenantd/pkg/kv"
)

// Attribute names used by the item encodings.
const (
	attrID            = "id"
	attrAccountID     = "account_id"
	attrEnterpriseID  = "enterprise_id"
	attrFirstName     = "first_name"
	attrLastName      = "last_name"
	attrEmail         = "email"
	attrAssignedRole  = "assigned_role"
	attrStatus        = "status"
	attrExternalSub   = "external_subject"
	attrEndDate       = "end_date"
	attrCreatedAt     = "created_at"
	attrUpdatedAt     = "updated_at"
	attrName          = "name"
	attrLicensedUsers = "licensed_users"
	attrIsVisible     = "is_visible"
	attrCanCreate     = "can_create"
	attrCanView       = "can_view"
	attrCanEdit       = "can_edit"
	attrCanDelete     = "can_delete"
	attrTabs          = "tabs"
	attrTabKey        = "key"
)

// AttrExternalSubject is the principal attribute patched by reconciliation.
const AttrExternalSubject = attrExternalSub

// AttrUpdatedAt is the audit timestamp attribute.
const AttrUpdatedAt = attrUpdatedAt

// PrincipalKey returns the primary key of a principal's metadata item.
func PrincipalKey(userID string) kv.Key {
	return kv.Key{PartitionKey: kv.UserPK(userID), SortKey: kv.MetadataSK}
}

// AccountKey returns the primary key of an account's metadata item.
func AccountKey(accountID string) kv.Key {
	return kv.Key{PartitionKey: kv.AccountPK(accountID), SortKey: kv.MetadataSK}
}

// EnterpriseKey returns the primary key of an enterprise's metadata item.
func EnterpriseKey(enterpriseID string) kv.Key {
	return kv.Key{PartitionKey: kv.EnterprisePK(enterpriseID), SortKey: kv.MetadataSK}
}

// RoleKey returns the primary key of a role's metadata item.
func RoleKey(roleID string) kv.Key {
	return kv.Key{PartitionKey: kv.RolePK(roleID), SortKey: kv.MetadataSK}
}

// Item encodes the principal's metadata item, including both secondary-index
// projections (by-type and by-tenant).
func (p *Principal) Item() kv.Item {
	item := kv.Item{
		kv.AttrPartitionKey: kv.UserPK(p.ID),
		kv.AttrSortKey:      kv.MetadataSK,
		kv.AttrTypePK:       kv.EntityTypeUser,
		kv.AttrTypeSK:       kv.UserPK(p.ID),
		kv.AttrTenantPK:     kv.AccountUsersPK(p.AccountID),
		kv.AttrTenantSK:     kv.UserPK(p.ID),
		attrID:              p.ID,
		attrAccountID:       p.AccountID,
		attrFirstName:       p.FirstName,
		attrLastName:        p.LastName,
		attrEmail:           p.Email,
		attrStatus:          string(p.Status),
		attrCreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339),
		attrUpdatedAt:       p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.EnterpriseID != "" {
		item[attrEnterpriseID] = p.EnterpriseID
	}
	if p.AssignedRole != "" {
		item[attrAssignedRole] = p.AssignedRole
	}
	if p.ExternalSubject != "" {
		item[attrExternalSub] = p.ExternalSubject
	}
	if p.EndDate != nil {
		item[attrEndDate] = p.EndDate.UTC().Format(time.RFC3339)
	}
	return item
}

// PrincipalFromItem decodes a principal metadata item.
func PrincipalFromItem(item kv.Item) (*Principal, error) {
	id := item.String(attrID)
	if id == "" {
		return nil, fmt.Errorf("directory: item is not a principal: missing id")
	}
	p := &Principal{
		ID:              id,
		AccountID:       item.String(attrAccountID),
		EnterpriseID:    item.String(attrEnterpriseID),
		FirstName:       item.String(attrFirstName),
		LastName:        item.String(attrLastName),
		Email:           item.String(attrEmail),
		AssignedRole:    item.String(attrAssignedRole),
		Status:          PrincipalStatus(item.String(attrStatus)),
		ExternalSubject: item.String(attrExternalSub),
		CreatedAt:       itemTime(item, attrCreatedAt),
		UpdatedAt:       itemTime(item, attrUpdatedAt),
	}
	if raw := item.String(attrEndDate); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("directory: bad end_date on %s: %w", id, err)
		}
		p.EndDate = &t
	}
	return p, nil
}

// Item encodes a workstream assignment row under the owning principal's
// partition.
func (w *WorkstreamAssignment) Item() kv.Item {
	return kv.Item{
		kv.AttrPartitionKey: kv.UserPK(w.UserID),
		kv.AttrSortKey:      kv.WorkstreamSK(w.WorkstreamID),
		attrID:              w.WorkstreamID,
	}
}

// WorkstreamFromItem decodes a workstream assignment row.
func WorkstreamFromItem(item kv.Item) WorkstreamAssignment {
	key := item.Key()
	return WorkstreamAssignment{
		UserID:       kv.UserIDFromPK(key.PartitionKey),
		WorkstreamID: kv.WorkstreamIDFromSK(key.SortKey),
	}
}

// Item encodes a group membership row under the principal's partition.
func (g *GroupMembership) Item() kv.Item {
	return kv.Item{
		kv.AttrPartitionKey: kv.UserPK(g.UserID),
		kv.AttrSortKey:      kv.GroupSK(g.GroupID),
	}
}

// Item encodes a group-to-role link under the group's partition.
func (g *GroupRoleLink) Item() kv.Item {
	return kv.Item{
		kv.AttrPartitionKey: kv.GroupPK(g.GroupID),
		kv.AttrSortKey:      kv.RoleSK(g.RoleID),
	}
}

// Item encodes a role metadata item, projected into the by-type index so
// roles can be found by name scan.
func (r *Role) Item() kv.Item {
	return kv.Item{
		kv.AttrPartitionKey: kv.RolePK(r.ID),
		kv.AttrSortKey:      kv.MetadataSK,
		kv.AttrTypePK:       kv.EntityTypeRole,
		kv.AttrTypeSK:       kv.RolePK(r.ID),
		attrID:              r.ID,
		attrName:            r.Name,
	}
}

// RoleFromItem decodes a role metadata item.
func RoleFromItem(item kv.Item) Role {
	return Role{ID: item.String(attrID), Name: item.String(attrName)}
}

// Item encodes one role's permission flags for one menu.
func (rp *RolePermission) Item() kv.Item {
	item := kv.Item{
		kv.AttrPartitionKey: kv.RolePK(rp.RoleID),
		kv.AttrSortKey:      kv.PermissionSK(rp.MenuKey),
		attrIsVisible:       rp.IsVisible,
		attrCanCreate:       rp.CanCreate,
		attrCanView:         rp.CanView,
		attrCanEdit:         rp.CanEdit,
		attrCanDelete:       rp.CanDelete,
	}
	if len(rp.Tabs) > 0 {
		tabs := make([]any, 0, len(rp.Tabs))
		for _, tab := range rp.Tabs {
			tabs = append(tabs, map[string]any{
				attrTabKey:    tab.Key,
				attrIsVisible: tab.IsVisible,
			})
		}
		item[attrTabs] = tabs
	}
	return item
}

// RolePermissionFromItem decodes a permission row.
func RolePermissionFromItem(item kv.Item) RolePermission {
	key := item.Key()
	rp := RolePermission{
		RoleID:    kv.RoleIDFromPK(key.PartitionKey),
		MenuKey:   kv.MenuKeyFromSK(key.SortKey),
		IsVisible: item.Bool(attrIsVisible),
		CanCreate: item.Bool(attrCanCreate),
		CanView:   item.Bool(attrCanView),
		CanEdit:   item.Bool(attrCanEdit),
		CanDelete: item.Bool(attrCanDelete),
	}
	if raw, ok := item[attrTabs].([]any); ok {
		for _, entry := range raw {
			tab, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			key, _ := tab[attrTabKey].(string)
			visible, _ := tab[attrIsVisible].(bool)
			rp.Tabs = append(rp.Tabs, TabPermission{Key: key, IsVisible: visible})
		}
	}
	return rp
}

// Item encodes an account metadata item, projected into the by-type index.
func (a *Account) Item() kv.Item {
	item := kv.Item{
		kv.AttrPartitionKey: kv.AccountPK(a.ID),
		kv.AttrSortKey:      kv.MetadataSK,
		kv.AttrTypePK:       kv.EntityTypeAccount,
		kv.AttrTypeSK:       kv.AccountPK(a.ID),
		attrID:              a.ID,
		attrName:            a.Name,
		attrLicensedUsers:   a.LicensedUsers,
	}
	if a.EnterpriseID != "" {
		item[attrEnterpriseID] = a.EnterpriseID
	}
	return item
}

// AccountFromItem decodes an account metadata item.
func AccountFromItem(item kv.Item) Account {
	return Account{
		ID:            item.String(attrID),
		Name:          item.String(attrName),
		EnterpriseID:  item.String(attrEnterpriseID),
		LicensedUsers: item.Int(attrLicensedUsers),
	}
}

// Item encodes an enterprise metadata item.
func (e *Enterprise) Item() kv.Item {
	return kv.Item{
		kv.AttrPartitionKey: kv.EnterprisePK(e.ID),
		kv.AttrSortKey:      kv.MetadataSK,
		attrID:              e.ID,
		attrName:            e.Name,
	}
}

// EnterpriseFromItem decodes an enterprise metadata item.
func EnterpriseFromItem(item kv.Item) Enterprise {
	return Enterprise{ID: item.String(attrID), Name: item.String(attrName)}
}

func itemTime(item kv.Item, attr string) time.Time {
	raw := item.String(attr)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
