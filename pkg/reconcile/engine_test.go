package reconcile

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/idp"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/notify"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// fakeAdapter scripts per-email provisioning outcomes.
type fakeAdapter struct {
	configured bool
	results    map[string]*idp.ProvisionResult
	errs       map[string]error
	calls      []string
}

func (f *fakeAdapter) CreateUser(ctx context.Context, profile idp.Profile) (*idp.ProvisionResult, error) {
	f.calls = append(f.calls, profile.Email)
	if err, ok := f.errs[profile.Email]; ok {
		return nil, err
	}
	if result, ok := f.results[profile.Email]; ok {
		return result, nil
	}
	return &idp.ProvisionResult{Outcome: idp.OutcomeCreated, ExternalSubject: "sub-" + profile.Email}, nil
}

func (f *fakeAdapter) UpdateUser(ctx context.Context, profile idp.Profile) error { return nil }

func (f *fakeAdapter) DeleteUser(ctx context.Context, email string) (*idp.DeleteResult, error) {
	return &idp.DeleteResult{Deleted: true}, nil
}

func (f *fakeAdapter) IsConfigured() bool { return f.configured }

type fakeDispatcher struct {
	notices []notify.CredentialNotice
	err     error
}

func (f *fakeDispatcher) SendCredentialProvisionedEmail(ctx context.Context, notice notify.CredentialNotice) (*notify.SendResult, error) {
	f.notices = append(f.notices, notice)
	if f.err != nil {
		return nil, f.err
	}
	return &notify.SendResult{Sent: true, AuditID: uuid.New().String()}, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func seedPrincipal(t *testing.T, store *kv.MemoryStore, id, accountID, email, subject string) {
	t.Helper()
	p := directory.Principal{
		ID:              id,
		AccountID:       accountID,
		Email:           email,
		Status:          directory.StatusActive,
		ExternalSubject: subject,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.TransactWrite(context.Background(), []kv.WriteOp{{Put: p.Item()}}))
}

func loadPrincipal(t *testing.T, store *kv.MemoryStore, id string) *directory.Principal {
	t.Helper()
	item, err := store.Get(context.Background(), directory.PrincipalKey(id))
	require.NoError(t, err)
	p, err := directory.PrincipalFromItem(item)
	require.NoError(t, err)
	return p
}

func TestReconcileRequiresConfiguredProvider(t *testing.T) {
	engine := NewEngine(kv.NewMemoryStore(), &fakeAdapter{configured: false}, nil, testLogger(), nil)

	_, err := engine.Reconcile(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	engine := NewEngine(store, adapter, nil, testLogger(), nil)

	seedPrincipal(t, store, "u1", "acct1", "a@example.com", "")
	seedPrincipal(t, store, "u2", "acct1", "b@example.com", "")

	summary, err := engine.Reconcile(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.MissingExternalID)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Provisioned)
	for _, d := range summary.Details {
		assert.Equal(t, OutcomeSkipped, d.Outcome)
		assert.Equal(t, "dry run", d.Reason)
	}

	// No provider calls and no store writes.
	assert.Empty(t, adapter.calls)
	assert.Empty(t, loadPrincipal(t, store, "u1").ExternalSubject)
}

func TestReconcilePatchesSubjectOnly(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{
		configured: true,
		results: map[string]*idp.ProvisionResult{
			"a@example.com": {Outcome: idp.OutcomeCreated, ExternalSubject: "sub-a", TemporaryPassword: "Temp123!"},
		},
	}
	dispatcher := &fakeDispatcher{}
	engine := NewEngine(store, adapter, dispatcher, testLogger(), nil)

	seedPrincipal(t, store, "u1", "acct1", "a@example.com", "")

	summary, err := engine.Reconcile(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Provisioned)

	after := loadPrincipal(t, store, "u1")
	assert.Equal(t, "sub-a", after.ExternalSubject)
	assert.Equal(t, directory.StatusActive, after.Status)
	assert.Equal(t, "a@example.com", after.Email)

	// A newly created upstream principal triggers the credential mail.
	require.Len(t, dispatcher.notices, 1)
	assert.Equal(t, "Temp123!", dispatcher.notices[0].TemporaryPassword)
}

func TestReconcileClassifiesExistingUpstreamAsUpdated(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{
		configured: true,
		results: map[string]*idp.ProvisionResult{
			"a@example.com": {Outcome: idp.OutcomeUpdated, ExternalSubject: "sub-a"},
		},
	}
	dispatcher := &fakeDispatcher{}
	engine := NewEngine(store, adapter, dispatcher, testLogger(), nil)

	seedPrincipal(t, store, "u1", "acct1", "a@example.com", "")

	summary, err := engine.Reconcile(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Zero(t, summary.Provisioned)
	assert.Equal(t, "sub-a", loadPrincipal(t, store, "u1").ExternalSubject)
	assert.Empty(t, dispatcher.notices)
}

func TestReconcileFailureDoesNotStopRun(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{
		configured: true,
		errs:       map[string]error{"bad@example.com": errors.New("throttled")},
	}
	engine := NewEngine(store, adapter, nil, testLogger(), nil)

	seedPrincipal(t, store, "u1", "acct1", "bad@example.com", "")
	seedPrincipal(t, store, "u2", "acct1", "good@example.com", "")

	summary, err := engine.Reconcile(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Provisioned)
	assert.Len(t, adapter.calls, 2)
	assert.Equal(t, "sub-good@example.com", loadPrincipal(t, store, "u2").ExternalSubject)
}

func TestReconcileSkipsWhenProviderReturnsNoSubject(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{
		configured: true,
		results: map[string]*idp.ProvisionResult{
			"a@example.com": {Outcome: idp.OutcomeSkipped, Reason: "provider disabled"},
		},
	}
	engine := NewEngine(store, adapter, nil, testLogger(), nil)

	seedPrincipal(t, store, "u1", "acct1", "a@example.com", "")

	summary, err := engine.Reconcile(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, "provider disabled", summary.Details[0].Reason)
	assert.Empty(t, loadPrincipal(t, store, "u1").ExternalSubject)
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	engine := NewEngine(store, adapter, nil, testLogger(), nil)

	seedPrincipal(t, store, "u1", "acct1", "a@example.com", "")

	first, err := engine.Reconcile(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Provisioned)

	// The subject is now set, so a second run selects nothing.
	second, err := engine.Reconcile(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.TotalScanned)
	assert.Zero(t, second.MissingExternalID)
	assert.Len(t, adapter.calls, 1)
}

func TestReconcileScopesToAccount(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	engine := NewEngine(store, adapter, nil, testLogger(), nil)

	seedPrincipal(t, store, "u1", "acct1", "a@example.com", "")
	seedPrincipal(t, store, "u2", "acct2", "b@example.com", "")

	summary, err := engine.Reconcile(context.Background(), Options{AccountID: "acct1"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalScanned)
	assert.Equal(t, []string{"a@example.com"}, adapter.calls)
	assert.Empty(t, loadPrincipal(t, store, "u2").ExternalSubject)
}

func TestReconcileIncludeInactive(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	engine := NewEngine(store, adapter, nil, testLogger(), nil)

	inactive := directory.Principal{
		ID:        "u1",
		AccountID: "acct1",
		Email:     "a@example.com",
		Status:    directory.StatusInactive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.TransactWrite(context.Background(), []kv.WriteOp{{Put: inactive.Item()}}))

	summary, err := engine.Reconcile(context.Background(), Options{})
	require.NoError(t, err)
	assert.Zero(t, summary.MissingExternalID)

	summary, err = engine.Reconcile(context.Background(), Options{IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.MissingExternalID)
	assert.Equal(t, 1, summary.Provisioned)
}
