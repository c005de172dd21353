package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "USER#u1", UserPK("u1"))
	assert.Equal(t, "WORKSTREAM#ws1", WorkstreamSK("ws1"))
	assert.Equal(t, "GROUP#g1", GroupPK("g1"))
	assert.Equal(t, "ROLE#r1", RolePK("r1"))
	assert.Equal(t, "PERMISSION#dashboard", PermissionSK("dashboard"))
	assert.Equal(t, "ACCOUNT#a1", AccountPK("a1"))
	assert.Equal(t, "ACCOUNT#a1#USERS", AccountUsersPK("a1"))
	assert.Equal(t, "ENTERPRISE#e1", EnterprisePK("e1"))
}

func TestKeyExtractors(t *testing.T) {
	assert.Equal(t, "u1", UserIDFromPK(UserPK("u1")))
	assert.Equal(t, "ws1", WorkstreamIDFromSK(WorkstreamSK("ws1")))
	assert.Equal(t, "g1", GroupIDFromSK(GroupSK("g1")))
	assert.Equal(t, "r1", RoleIDFromPK(RolePK("r1")))
	assert.Equal(t, "r1", RoleIDFromSK(RoleSK("r1")))
	assert.Equal(t, "dashboard", MenuKeyFromSK(PermissionSK("dashboard")))
	assert.Equal(t, "a1", AccountIDFromPK(AccountPK("a1")))
}

func TestSortConditionMatches(t *testing.T) {
	assert.True(t, SortCondition{}.Matches("anything"))
	assert.True(t, SortEquals("METADATA").Matches("METADATA"))
	assert.False(t, SortEquals("METADATA").Matches("WORKSTREAM#ws1"))
	assert.True(t, SortBeginsWith("WORKSTREAM#").Matches("WORKSTREAM#ws1"))
	assert.False(t, SortBeginsWith("WORKSTREAM#").Matches("GROUP#g1"))
	assert.False(t, SortBeginsWith("WORKSTREAM#").Matches("WORK"))
}
