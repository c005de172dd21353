package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// Resolver computes effective permissions from the directory store.
type Resolver struct {
	store  kv.Store
	logger *observability.Logger
	now    func() time.Time
}

// NewResolver creates a permission resolver over store.
func NewResolver(store kv.Store, logger *observability.Logger) *Resolver {
	return &Resolver{store: store, logger: logger, now: time.Now}
}

// Resolve computes the caller's merged menu permissions. tenantID is an
// optional narrowing hint for callers present in several tenants; an empty
// tenantID resolves against whichever match wins the tie-break. An unknown
// or inactive caller yields an empty result, not an error.
func (r *Resolver) Resolve(ctx context.Context, callerEmail, tenantID string) (*ResolveResult, error) {
	principal, err := r.findPrincipal(ctx, callerEmail, tenantID)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return &ResolveResult{Permissions: []MenuPermission{}}, nil
	}

	roleIDs, err := r.collectRoleIDs(ctx, principal)
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{
		Permissions:     []MenuPermission{},
		TechnicalUserID: principal.ID,
	}
	if len(roleIDs) == 0 {
		return result, nil
	}

	merged := make(map[string]*MenuPermission)
	order := make([]string, 0)
	for i, roleID := range roleIDs {
		if i == 0 {
			result.RoleID = roleID
			role, err := r.loadRole(ctx, roleID)
			if err != nil {
				return nil, err
			}
			if role != nil {
				result.RoleName = role.Name
			}
		}

		rows, err := r.store.Query(ctx, kv.RolePK(roleID), kv.SortBeginsWith("PERMISSION#"))
		if err != nil {
			return nil, fmt.Errorf("failed to load permissions for role %s: %w", roleID, err)
		}
		for _, row := range rows {
			perm := directory.RolePermissionFromItem(row)
			entry, ok := merged[perm.MenuKey]
			if !ok {
				entry = &MenuPermission{MenuKey: perm.MenuKey}
				merged[perm.MenuKey] = entry
				order = append(order, perm.MenuKey)
			}
			mergePermission(entry, perm)
		}
	}

	for _, menuKey := range order {
		result.Permissions = append(result.Permissions, *merged[menuKey])
	}
	return result, nil
}

// mergePermission folds one role's row into the accumulator. Flags only
// escalate: combining roles never removes access.
func mergePermission(acc *MenuPermission, perm directory.RolePermission) {
	acc.IsVisible = acc.IsVisible || perm.IsVisible
	acc.CanCreate = acc.CanCreate || perm.CanCreate
	acc.CanView = acc.CanView || perm.CanView
	acc.CanEdit = acc.CanEdit || perm.CanEdit
	acc.CanDelete = acc.CanDelete || perm.CanDelete

	for _, tab := range perm.Tabs {
		found := false
		for i := range acc.Tabs {
			if acc.Tabs[i].Key == tab.Key {
				acc.Tabs[i].IsVisible = acc.Tabs[i].IsVisible || tab.IsVisible
				found = true
				break
			}
		}
		if !found {
			acc.Tabs = append(acc.Tabs, tab)
		}
	}
}

// findPrincipal scans active principals by email through the by-type index.
// When several principals share an email, a supplied tenant id narrows the
// set if the narrowed set is non-empty; remaining ties go to the most
// recently created principal.
func (r *Resolver) findPrincipal(ctx context.Context, email, tenantID string) (*directory.Principal, error) {
	items, err := r.store.QueryByIndex(ctx, kv.IndexByType, kv.EntityTypeUser, kv.SortCondition{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan principals: %w", err)
	}

	now := r.now().UTC()
	var matches []*directory.Principal
	for _, item := range items {
		p, err := directory.PrincipalFromItem(item)
		if err != nil {
			r.logger.WithError(err).Warn("skipping malformed principal record")
			continue
		}
		if !strings.EqualFold(p.Email, email) || !p.IsActive(now) {
			continue
		}
		matches = append(matches, p)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	if tenantID != "" {
		var narrowed []*directory.Principal
		for _, p := range matches {
			if p.AccountID == tenantID {
				narrowed = append(narrowed, p)
			}
		}
		if len(narrowed) > 0 {
			matches = narrowed
		}
	}

	best := matches[0]
	for _, p := range matches[1:] {
		if p.CreatedAt.After(best.CreatedAt) {
			best = p
		}
	}
	return best, nil
}

// collectRoleIDs walks group memberships to role links, deduplicating role
// ids. When the principal belongs to no groups, the legacy assigned role
// name is matched against role metadata as the sole role.
func (r *Resolver) collectRoleIDs(ctx context.Context, principal *directory.Principal) ([]string, error) {
	memberships, err := r.store.Query(ctx, kv.UserPK(principal.ID), kv.SortBeginsWith("GROUP#"))
	if err != nil {
		return nil, fmt.Errorf("failed to load group memberships: %w", err)
	}

	seen := make(map[string]bool)
	var roleIDs []string
	for _, membership := range memberships {
		groupID := kv.GroupIDFromSK(membership.Key().SortKey)
		links, err := r.store.Query(ctx, kv.GroupPK(groupID), kv.SortBeginsWith("ROLE#"))
		if err != nil {
			return nil, fmt.Errorf("failed to load role links for group %s: %w", groupID, err)
		}
		for _, link := range links {
			roleID := kv.RoleIDFromSK(link.Key().SortKey)
			if !seen[roleID] {
				seen[roleID] = true
				roleIDs = append(roleIDs, roleID)
			}
		}
	}
	if len(roleIDs) > 0 {
		return roleIDs, nil
	}

	if principal.AssignedRole == "" {
		return nil, nil
	}
	role, err := r.findRoleByName(ctx, principal.AssignedRole)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, nil
	}
	return []string{role.ID}, nil
}

func (r *Resolver) loadRole(ctx context.Context, roleID string) (*directory.Role, error) {
	item, err := r.store.Get(ctx, directory.RoleKey(roleID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load role %s: %w", roleID, err)
	}
	role := directory.RoleFromItem(item)
	return &role, nil
}

func (r *Resolver) findRoleByName(ctx context.Context, name string) (*directory.Role, error) {
	items, err := r.store.QueryByIndex(ctx, kv.IndexByType, kv.EntityTypeRole, kv.SortCondition{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan roles: %w", err)
	}
	for _, item := range items {
		role := directory.RoleFromItem(item)
		if role.Name == name {
			return &role, nil
		}
	}
	return nil, nil
}
