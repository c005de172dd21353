package kv

import (
	"fmt"
	"strings"
)

// Sort key for entity metadata items.
const MetadataSK = "METADATA"

// Type-index partition values.
const (
	EntityTypeUser    = "ENTITY#USER"
	EntityTypeAccount = "ENTITY#ACCOUNT"
	EntityTypeRole    = "ENTITY#ROLE"
)

// User keys
func UserPK(userID string) string { return fmt.Sprintf("USER#%s", userID) }

// UserIDFromPK extracts the user id from a USER# partition key.
func UserIDFromPK(pk string) string { return strings.TrimPrefix(pk, "USER#") }

// WorkstreamSK builds the sort key of a workstream assignment row.
func WorkstreamSK(workstreamID string) string { return fmt.Sprintf("WORKSTREAM#%s", workstreamID) }

// WorkstreamIDFromSK extracts the workstream id from a WORKSTREAM# sort key.
func WorkstreamIDFromSK(sk string) string { return strings.TrimPrefix(sk, "WORKSTREAM#") }

// Group keys
func GroupPK(groupID string) string { return fmt.Sprintf("GROUP#%s", groupID) }
func GroupSK(groupID string) string { return GroupPK(groupID) }

// GroupIDFromSK extracts the group id from a GROUP# sort key.
func GroupIDFromSK(sk string) string { return strings.TrimPrefix(sk, "GROUP#") }

// Role keys
func RolePK(roleID string) string { return fmt.Sprintf("ROLE#%s", roleID) }
func RoleSK(roleID string) string { return RolePK(roleID) }

// RoleIDFromPK extracts the role id from a ROLE# partition key.
func RoleIDFromPK(pk string) string { return strings.TrimPrefix(pk, "ROLE#") }

// RoleIDFromSK extracts the role id from a ROLE# sort key.
func RoleIDFromSK(sk string) string { return strings.TrimPrefix(sk, "ROLE#") }

// PermissionSK builds the sort key of a role's permission row for a menu.
func PermissionSK(menuKey string) string { return fmt.Sprintf("PERMISSION#%s", menuKey) }

// MenuKeyFromSK extracts the menu key from a PERMISSION# sort key.
func MenuKeyFromSK(sk string) string { return strings.TrimPrefix(sk, "PERMISSION#") }

// Account keys
func AccountPK(accountID string) string { return fmt.Sprintf("ACCOUNT#%s", accountID) }

// AccountIDFromPK extracts the account id from an ACCOUNT# partition key.
func AccountIDFromPK(pk string) string { return strings.TrimPrefix(pk, "ACCOUNT#") }

// AccountUsersPK builds the tenant-index partition grouping an account's
// principals.
func AccountUsersPK(accountID string) string { return fmt.Sprintf("ACCOUNT#%s#USERS", accountID) }

// Enterprise keys
func EnterprisePK(enterpriseID string) string { return fmt.Sprintf("ENTERPRISE#%s", enterpriseID) }
