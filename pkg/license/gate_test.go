package license

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/kv"
)

func seedAccount(t *testing.T, store *kv.MemoryStore, accountID string, licensed int) {
	t.Helper()
	account := directory.Account{ID: accountID, Name: "Acme", LicensedUsers: licensed}
	require.NoError(t, store.TransactWrite(context.Background(), []kv.WriteOp{{Put: account.Item()}}))
}

func seedPrincipal(t *testing.T, store *kv.MemoryStore, id, accountID string, status directory.PrincipalStatus, endDate *time.Time) {
	t.Helper()
	p := directory.Principal{
		ID:        id,
		AccountID: accountID,
		Email:     fmt.Sprintf("%s@example.com", id),
		Status:    status,
		EndDate:   endDate,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.TransactWrite(context.Background(), []kv.WriteOp{{Put: p.Item()}}))
}

func TestGetCapacity(t *testing.T) {
	store := kv.NewMemoryStore()
	gate := NewGate(store)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 3)
	seedPrincipal(t, store, "u1", "acct1", directory.StatusActive, nil)
	seedPrincipal(t, store, "u2", "acct1", directory.StatusActive, nil)

	capacity, err := gate.GetCapacity(ctx, "acct1")
	require.NoError(t, err)
	assert.Equal(t, 3, capacity.TotalAllowed)
	assert.Equal(t, 2, capacity.CurrentActiveUsers)
	assert.Equal(t, 1, capacity.Remaining)
}

func TestGetCapacityAccountNotFound(t *testing.T) {
	gate := NewGate(kv.NewMemoryStore())

	_, err := gate.GetCapacity(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGetCapacityExcludesInactiveAndExpired(t *testing.T) {
	store := kv.NewMemoryStore()
	gate := NewGate(store)

	seedAccount(t, store, "acct1", 5)
	seedPrincipal(t, store, "u1", "acct1", directory.StatusActive, nil)
	seedPrincipal(t, store, "u2", "acct1", directory.StatusInactive, nil)

	past := time.Now().Add(-24 * time.Hour)
	seedPrincipal(t, store, "u3", "acct1", directory.StatusActive, &past)

	future := time.Now().Add(24 * time.Hour)
	seedPrincipal(t, store, "u4", "acct1", directory.StatusActive, &future)

	capacity, err := gate.GetCapacity(context.Background(), "acct1")
	require.NoError(t, err)
	assert.Equal(t, 2, capacity.CurrentActiveUsers)
}

func TestValidateUserCreation(t *testing.T) {
	store := kv.NewMemoryStore()
	gate := NewGate(store)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 2)
	seedPrincipal(t, store, "u1", "acct1", directory.StatusActive, nil)

	capacity, err := gate.ValidateUserCreation(ctx, "acct1")
	require.NoError(t, err)
	assert.Equal(t, 1, capacity.Remaining)

	seedPrincipal(t, store, "u2", "acct1", directory.StatusActive, nil)

	_, err = gate.ValidateUserCreation(ctx, "acct1")
	require.Error(t, err)
	assert.True(t, IsCapacityExceeded(err))
}

func TestValidateUserCreationOverCeiling(t *testing.T) {
	store := kv.NewMemoryStore()
	gate := NewGate(store)

	// Over the ceiling, not just at it: the check still fails.
	seedAccount(t, store, "acct1", 1)
	seedPrincipal(t, store, "u1", "acct1", directory.StatusActive, nil)
	seedPrincipal(t, store, "u2", "acct1", directory.StatusActive, nil)

	_, err := gate.ValidateUserCreation(context.Background(), "acct1")
	require.Error(t, err)
	assert.True(t, IsCapacityExceeded(err))

	var exceeded *CapacityExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 1, exceeded.Allowed)
	assert.Equal(t, 2, exceeded.Active)
}

func TestCapacityAfterCreation(t *testing.T) {
	c := Capacity{TotalAllowed: 10, CurrentActiveUsers: 4, Remaining: 6}
	after := c.AfterCreation()
	assert.Equal(t, 5, after.CurrentActiveUsers)
	assert.Equal(t, 5, after.Remaining)
	assert.Equal(t, 10, after.TotalAllowed)
}
