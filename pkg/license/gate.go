package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/kv"
)

// Capacity is the license snapshot governing whether an account may onboard
// another principal.
type Capacity struct {
	TotalAllowed       int `json:"total_allowed"`
	CurrentActiveUsers int `json:"current_active_users"`
	Remaining          int `json:"remaining"`
}

// AfterCreation returns the snapshot advanced by one freshly created user,
// computed locally without re-querying the store.
func (c Capacity) AfterCreation() Capacity {
	return Capacity{
		TotalAllowed:       c.TotalAllowed,
		CurrentActiveUsers: c.CurrentActiveUsers + 1,
		Remaining:          c.Remaining - 1,
	}
}

// CapacityExceededError reports an account at or over its licensed ceiling.
type CapacityExceededError struct {
	AccountID string
	Allowed   int
	Active    int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("license capacity exceeded for account %s: %d of %d active users",
		e.AccountID, e.Active, e.Allowed)
}

// IsCapacityExceeded checks if an error is a CapacityExceededError.
func IsCapacityExceeded(err error) bool {
	var ce *CapacityExceededError
	return errors.As(err, &ce)
}

// ErrAccountNotFound is returned when the account metadata item is absent.
var ErrAccountNotFound = errors.New("license: account not found")

// Gate computes and enforces license capacity. It performs reads only; the
// caller owns the subsequent write.
type Gate struct {
	store kv.Store
	now   func() time.Time
}

// NewGate creates a capacity gate over the given store.
func NewGate(store kv.Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// GetCapacity returns the account's capacity snapshot without enforcing the
// ceiling. Used for display.
func (g *Gate) GetCapacity(ctx context.Context, accountID string) (*Capacity, error) {
	item, err := g.store.Get(ctx, directory.AccountKey(accountID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	account := directory.AccountFromItem(item)

	active, err := g.countActiveUsers(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &Capacity{
		TotalAllowed:       account.LicensedUsers,
		CurrentActiveUsers: active,
		Remaining:          account.LicensedUsers - active,
	}, nil
}

// ValidateUserCreation enforces the ceiling before a creation. Returns the
// capacity snapshot on success and a CapacityExceededError when the account
// is at or over its ceiling. No store write occurs either way.
func (g *Gate) ValidateUserCreation(ctx context.Context, accountID string) (*Capacity, error) {
	capacity, err := g.GetCapacity(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if capacity.CurrentActiveUsers >= capacity.TotalAllowed {
		return nil, &CapacityExceededError{
			AccountID: accountID,
			Allowed:   capacity.TotalAllowed,
			Active:    capacity.CurrentActiveUsers,
		}
	}
	return capacity, nil
}

func (g *Gate) countActiveUsers(ctx context.Context, accountID string) (int, error) {
	items, err := g.store.QueryByIndex(ctx, kv.IndexByTenant, kv.AccountUsersPK(accountID), kv.SortCondition{})
	if err != nil {
		return 0, fmt.Errorf("failed to list account users: %w", err)
	}

	now := g.now()
	active := 0
	for _, item := range items {
		principal, err := directory.PrincipalFromItem(item)
		if err != nil {
			continue
		}
		if principal.IsActive(now) {
			active++
		}
	}
	return active, nil
}
