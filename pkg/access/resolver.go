package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// PlaceholderName stands in for a display name whose point lookup failed.
const PlaceholderName = "Unknown"

const defaultNameCacheSize = 512

// Caller identifies the requester being resolved. Groups carries the
// caller's token claims as-is.
type Caller struct {
	Email  string   `json:"email"`
	Groups []string `json:"groups,omitempty"`
}

// AccountAccess is one visible tenant with resolved display names.
type AccountAccess struct {
	AccountID      string `json:"account_id"`
	AccountName    string `json:"account_name"`
	EnterpriseID   string `json:"enterprise_id,omitempty"`
	EnterpriseName string `json:"enterprise_name,omitempty"`
}

// Result is the caller's resolved visibility.
type Result struct {
	IsSuperAdmin bool            `json:"is_super_admin"`
	Accounts     []AccountAccess `json:"accounts"`
}

// Resolver computes tenant visibility from the directory store.
type Resolver struct {
	store              kv.Store
	logger             *observability.Logger
	platformAdminEmail string
	superAdminGroup    string
	names              *lru.Cache[string, string]
	now                func() time.Time
}

// NewResolver creates an access resolver. platformAdminEmail grants
// super-admin by exact email match; superAdminGroup grants it by claim.
// nameCacheSize bounds the display-name LRU; zero or negative selects the
// default.
func NewResolver(store kv.Store, logger *observability.Logger, platformAdminEmail, superAdminGroup string, nameCacheSize int) *Resolver {
	if nameCacheSize <= 0 {
		nameCacheSize = defaultNameCacheSize
	}
	names, _ := lru.New[string, string](nameCacheSize)
	return &Resolver{
		store:              store,
		logger:             logger,
		platformAdminEmail: platformAdminEmail,
		superAdminGroup:    superAdminGroup,
		names:              names,
		now:                time.Now,
	}
}

// Resolve returns the caller's visible accounts. Super-admins get every
// account; other callers get the accounts where an active principal matches
// their email, deduplicated by account id.
func (r *Resolver) Resolve(ctx context.Context, caller Caller) (*Result, error) {
	if r.isSuperAdmin(caller) {
		accounts, err := r.allAccounts(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{IsSuperAdmin: true, Accounts: accounts}, nil
	}

	items, err := r.store.QueryByIndex(ctx, kv.IndexByType, kv.EntityTypeUser, kv.SortCondition{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan principals: %w", err)
	}

	now := r.now().UTC()
	seen := make(map[string]bool)
	accounts := []AccountAccess{}
	for _, item := range items {
		p, err := directory.PrincipalFromItem(item)
		if err != nil {
			r.logger.WithError(err).Warn("skipping malformed principal record")
			continue
		}
		if !strings.EqualFold(p.Email, caller.Email) || !p.IsActive(now) {
			continue
		}
		if seen[p.AccountID] {
			continue
		}
		seen[p.AccountID] = true
		accounts = append(accounts, r.describeAccount(ctx, p.AccountID, p.EnterpriseID))
	}
	return &Result{Accounts: accounts}, nil
}

func (r *Resolver) isSuperAdmin(caller Caller) bool {
	if r.platformAdminEmail != "" && strings.EqualFold(caller.Email, r.platformAdminEmail) {
		return true
	}
	if r.superAdminGroup == "" {
		return false
	}
	for _, group := range caller.Groups {
		if group == r.superAdminGroup {
			return true
		}
	}
	return false
}

func (r *Resolver) allAccounts(ctx context.Context) ([]AccountAccess, error) {
	items, err := r.store.QueryByIndex(ctx, kv.IndexByType, kv.EntityTypeAccount, kv.SortCondition{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}

	accounts := make([]AccountAccess, 0, len(items))
	for _, item := range items {
		account := directory.AccountFromItem(item)
		entry := AccountAccess{
			AccountID:    account.ID,
			AccountName:  account.Name,
			EnterpriseID: account.EnterpriseID,
		}
		if account.EnterpriseID != "" {
			entry.EnterpriseName = r.enterpriseName(ctx, account.EnterpriseID)
		}
		accounts = append(accounts, entry)
	}
	return accounts, nil
}

// describeAccount resolves display names with point lookups; failures are
// logged and replaced with PlaceholderName.
func (r *Resolver) describeAccount(ctx context.Context, accountID, enterpriseID string) AccountAccess {
	entry := AccountAccess{
		AccountID:    accountID,
		EnterpriseID: enterpriseID,
		AccountName:  r.accountName(ctx, accountID),
	}
	if enterpriseID != "" {
		entry.EnterpriseName = r.enterpriseName(ctx, enterpriseID)
	}
	return entry
}

func (r *Resolver) accountName(ctx context.Context, accountID string) string {
	cacheKey := "account:" + accountID
	if name, ok := r.names.Get(cacheKey); ok {
		return name
	}

	item, err := r.store.Get(ctx, directory.AccountKey(accountID))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			r.logger.WithError(err).WithField("account_id", accountID).Warn("account name lookup failed")
		}
		return PlaceholderName
	}
	name := directory.AccountFromItem(item).Name
	if name == "" {
		name = PlaceholderName
	}
	r.names.Add(cacheKey, name)
	return name
}

func (r *Resolver) enterpriseName(ctx context.Context, enterpriseID string) string {
	cacheKey := "enterprise:" + enterpriseID
	if name, ok := r.names.Get(cacheKey); ok {
		return name
	}

	item, err := r.store.Get(ctx, directory.EnterpriseKey(enterpriseID))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			r.logger.WithError(err).WithField("enterprise_id", enterpriseID).Warn("enterprise name lookup failed")
		}
		return PlaceholderName
	}
	name := directory.EnterpriseFromItem(item).Name
	if name == "" {
		name = PlaceholderName
	}
	r.names.Add(cacheKey, name)
	return name
}
