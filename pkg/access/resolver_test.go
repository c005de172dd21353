package access

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func put(t *testing.T, store *kv.MemoryStore, items ...kv.Item) {
	t.Helper()
	for _, item := range items {
		require.NoError(t, store.TransactWrite(context.Background(), []kv.WriteOp{{Put: item}}))
	}
}

func principalItem(id, accountID, enterpriseID, email string) kv.Item {
	p := directory.Principal{
		ID:           id,
		AccountID:    accountID,
		EnterpriseID: enterpriseID,
		Email:        email,
		Status:       directory.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	return p.Item()
}

func TestResolveScopedCaller(t *testing.T) {
	store := kv.NewMemoryStore()
	resolver := NewResolver(store, testLogger(), "root@example.com", "", 0)
	ctx := context.Background()

	put(t, store,
		(&directory.Account{ID: "acct1", Name: "Acme", EnterpriseID: "ent1"}).Item(),
		(&directory.Account{ID: "acct2", Name: "Globex"}).Item(),
		(&directory.Enterprise{ID: "ent1", Name: "Acme Holdings"}).Item(),
		principalItem("u1", "acct1", "ent1", "ada@example.com"),
		principalItem("u2", "acct2", "", "ada@example.com"),
		principalItem("u3", "acct2", "", "other@example.com"),
	)

	result, err := resolver.Resolve(ctx, Caller{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, result.IsSuperAdmin)
	require.Len(t, result.Accounts, 2)

	byID := map[string]AccountAccess{}
	for _, a := range result.Accounts {
		byID[a.AccountID] = a
	}
	assert.Equal(t, "Acme", byID["acct1"].AccountName)
	assert.Equal(t, "Acme Holdings", byID["acct1"].EnterpriseName)
	assert.Equal(t, "Globex", byID["acct2"].AccountName)
	assert.Empty(t, byID["acct2"].EnterpriseName)
}

func TestResolveDeduplicatesAccounts(t *testing.T) {
	store := kv.NewMemoryStore()
	resolver := NewResolver(store, testLogger(), "", "", 0)

	// Two principals in the same account for one email.
	put(t, store,
		(&directory.Account{ID: "acct1", Name: "Acme"}).Item(),
		principalItem("u1", "acct1", "", "ada@example.com"),
		principalItem("u2", "acct1", "", "ada@example.com"),
	)

	result, err := resolver.Resolve(context.Background(), Caller{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Len(t, result.Accounts, 1)
}

func TestResolveSuperAdminByEmail(t *testing.T) {
	store := kv.NewMemoryStore()
	resolver := NewResolver(store, testLogger(), "root@example.com", "", 0)

	put(t, store,
		(&directory.Account{ID: "acct1", Name: "Acme"}).Item(),
		(&directory.Account{ID: "acct2", Name: "Globex"}).Item(),
	)

	// Super-admins see every account even with no principal anywhere.
	result, err := resolver.Resolve(context.Background(), Caller{Email: "Root@Example.com"})
	require.NoError(t, err)
	assert.True(t, result.IsSuperAdmin)
	assert.Len(t, result.Accounts, 2)
}

func TestResolveSuperAdminByGroupClaim(t *testing.T) {
	store := kv.NewMemoryStore()
	resolver := NewResolver(store, testLogger(), "", "platform-admins", 0)

	put(t, store, (&directory.Account{ID: "acct1", Name: "Acme"}).Item())

	result, err := resolver.Resolve(context.Background(), Caller{
		Email:  "ada@example.com",
		Groups: []string{"engineers", "platform-admins"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsSuperAdmin)
	assert.Len(t, result.Accounts, 1)
}

func TestResolveDegradesToPlaceholderNames(t *testing.T) {
	store := kv.NewMemoryStore()
	resolver := NewResolver(store, testLogger(), "", "", 0)

	// The principal references an account and enterprise that have no
	// metadata items. Resolution still succeeds.
	put(t, store, principalItem("u1", "ghost-acct", "ghost-ent", "ada@example.com"))

	result, err := resolver.Resolve(context.Background(), Caller{Email: "ada@example.com"})
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)
	assert.Equal(t, PlaceholderName, result.Accounts[0].AccountName)
	assert.Equal(t, PlaceholderName, result.Accounts[0].EnterpriseName)
}

func TestResolveExcludesInactivePrincipals(t *testing.T) {
	store := kv.NewMemoryStore()
	resolver := NewResolver(store, testLogger(), "", "", 0)

	past := time.Now().UTC().Add(-24 * time.Hour)
	inactive := directory.Principal{
		ID:        "u1",
		AccountID: "acct1",
		Email:     "ada@example.com",
		Status:    directory.StatusInactive,
		CreatedAt: time.Now().UTC(),
	}
	ended := directory.Principal{
		ID:        "u2",
		AccountID: "acct2",
		Email:     "ada@example.com",
		Status:    directory.StatusActive,
		EndDate:   &past,
		CreatedAt: time.Now().UTC(),
	}
	put(t, store,
		(&directory.Account{ID: "acct1", Name: "Acme"}).Item(),
		(&directory.Account{ID: "acct2", Name: "Globex"}).Item(),
		inactive.Item(),
		ended.Item(),
	)

	result, err := resolver.Resolve(context.Background(), Caller{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Empty(t, result.Accounts)
}

func TestResolveUnknownCaller(t *testing.T) {
	resolver := NewResolver(kv.NewMemoryStore(), testLogger(), "", "", 0)

	result, err := resolver.Resolve(context.Background(), Caller{Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.False(t, result.IsSuperAdmin)
	assert.Empty(t, result.Accounts)
}
