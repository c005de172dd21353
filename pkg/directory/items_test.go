package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon-ops/tenantd/pkg/kv"
)

func TestPrincipalItemProjections(t *testing.T) {
	p := Principal{
		ID:        "u1",
		AccountID: "acct1",
		Email:     "ada@example.com",
		Status:    StatusActive,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	item := p.Item()
	assert.Equal(t, kv.UserPK("u1"), item[kv.AttrPartitionKey])
	assert.Equal(t, kv.MetadataSK, item[kv.AttrSortKey])
	assert.Equal(t, kv.EntityTypeUser, item[kv.AttrTypePK])
	assert.Equal(t, kv.AccountUsersPK("acct1"), item[kv.AttrTenantPK])

	// Unset optional fields are omitted entirely, not stored empty.
	assert.NotContains(t, item, AttrExternalSubject)
	assert.NotContains(t, item, "end_date")
	assert.NotContains(t, item, "assigned_role")
}

func TestPrincipalRoundtrip(t *testing.T) {
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	p := Principal{
		ID:              "u1",
		AccountID:       "acct1",
		EnterpriseID:    "ent1",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		AssignedRole:    "Site Admin",
		Status:          StatusActive,
		ExternalSubject: "sub-123",
		EndDate:         &end,
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}

	decoded, err := PrincipalFromItem(p.Item())
	require.NoError(t, err)
	assert.Equal(t, &p, decoded)
}

func TestPrincipalFromItemRejectsNonPrincipal(t *testing.T) {
	_, err := PrincipalFromItem(kv.Item{kv.AttrPartitionKey: "USER#u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestPrincipalFromItemRejectsBadEndDate(t *testing.T) {
	p := Principal{ID: "u1", AccountID: "acct1", Status: StatusActive}
	item := p.Item()
	item["end_date"] = "yesterday"

	_, err := PrincipalFromItem(item)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date")
}

func TestRolePermissionRoundtripWithTabs(t *testing.T) {
	rp := RolePermission{
		RoleID:    "r1",
		MenuKey:   "builds",
		IsVisible: true,
		CanView:   true,
		CanEdit:   true,
		Tabs: []TabPermission{
			{Key: "history", IsVisible: true},
			{Key: "settings", IsVisible: false},
		},
	}

	decoded := RolePermissionFromItem(rp.Item())
	assert.Equal(t, rp, decoded)
}

func TestWorkstreamAssignmentKeys(t *testing.T) {
	w := WorkstreamAssignment{UserID: "u1", WorkstreamID: "ws-1"}

	decoded := WorkstreamFromItem(w.Item())
	assert.Equal(t, w, decoded)
}
