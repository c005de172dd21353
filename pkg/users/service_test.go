package users

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/idp"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/license"
	"github.com/pantheon-ops/tenantd/pkg/notify"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// fakeAdapter is a scriptable identity provider.
type fakeAdapter struct {
	createCalls []idp.Profile
	updateCalls []idp.Profile
	deleteCalls []string

	createResult *idp.ProvisionResult
	createErr    error
	updateErr    error
	deleteResult *idp.DeleteResult
	deleteErr    error
	configured   bool
}

func (f *fakeAdapter) CreateUser(ctx context.Context, profile idp.Profile) (*idp.ProvisionResult, error) {
	f.createCalls = append(f.createCalls, profile)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResult != nil {
		return f.createResult, nil
	}
	return &idp.ProvisionResult{Outcome: idp.OutcomeCreated, ExternalSubject: "sub-123"}, nil
}

func (f *fakeAdapter) UpdateUser(ctx context.Context, profile idp.Profile) error {
	f.updateCalls = append(f.updateCalls, profile)
	return f.updateErr
}

func (f *fakeAdapter) DeleteUser(ctx context.Context, email string) (*idp.DeleteResult, error) {
	f.deleteCalls = append(f.deleteCalls, email)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if f.deleteResult != nil {
		return f.deleteResult, nil
	}
	return &idp.DeleteResult{Deleted: true}, nil
}

func (f *fakeAdapter) IsConfigured() bool { return f.configured }

// fakeDispatcher records notices.
type fakeDispatcher struct {
	notices []notify.CredentialNotice
	err     error
}

func (f *fakeDispatcher) SendCredentialProvisionedEmail(ctx context.Context, notice notify.CredentialNotice) (*notify.SendResult, error) {
	f.notices = append(f.notices, notice)
	if f.err != nil {
		return nil, f.err
	}
	return &notify.SendResult{Sent: true, MessageID: "m1", AuditID: "a1"}, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func seedAccount(t *testing.T, store *kv.MemoryStore, accountID string, licensed int) {
	t.Helper()
	account := directory.Account{ID: accountID, Name: "Acme", LicensedUsers: licensed}
	require.NoError(t, store.TransactWrite(context.Background(), []kv.WriteOp{{Put: account.Item()}}))
}

func newTestOrchestrator(store *kv.MemoryStore, adapter *fakeAdapter, dispatcher *fakeDispatcher) *Orchestrator {
	return NewOrchestrator(store, license.NewGate(store), adapter, dispatcher, testLogger())
}

func TestCreatePersistsPrincipalAndWorkstreams(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true, createResult: &idp.ProvisionResult{
		Outcome:           idp.OutcomeCreated,
		ExternalSubject:   "sub-123",
		TemporaryPassword: "Temp-Pass-1!",
	}}
	dispatcher := &fakeDispatcher{}
	orchestrator := newTestOrchestrator(store, adapter, dispatcher)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)

	result, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID:     "acct1",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.com",
		WorkstreamIDs: []string{"ws1", "ws2"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Principal)
	assert.NotEmpty(t, result.Principal.ID)
	assert.Equal(t, "sub-123", result.Principal.ExternalSubject)
	assert.Equal(t, directory.StatusActive, result.Principal.Status)

	// Capacity is advanced locally, not re-queried.
	assert.Equal(t, 1, result.Capacity.CurrentActiveUsers)
	assert.Equal(t, 4, result.Capacity.Remaining)

	assert.Equal(t, idp.OutcomeCreated, result.ProviderSync.Outcome)
	require.NotNil(t, result.Notification)
	assert.True(t, result.Notification.Sent)
	require.Len(t, dispatcher.notices, 1)
	assert.Equal(t, "ada@example.com", dispatcher.notices[0].Recipient)

	// Metadata plus two workstream rows under the principal's partition.
	items, err := store.Query(ctx, kv.UserPK(result.Principal.ID), kv.SortCondition{})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestCreateBlockedByCapacityWritesNothing(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	orchestrator := newTestOrchestrator(store, adapter, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 0)
	before := store.Len()

	_, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID: "acct1",
		Email:     "ada@example.com",
	})
	require.Error(t, err)
	assert.True(t, license.IsCapacityExceeded(err))

	// The gate runs before anything else: no provider call, no write.
	assert.Empty(t, adapter.createCalls)
	assert.Equal(t, before, store.Len())
}

func TestCreateSurvivesProviderFailure(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true, createErr: errors.New("cognito unavailable")}
	orchestrator := newTestOrchestrator(store, adapter, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)

	result, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID: "acct1",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, idp.OutcomeFailed, result.ProviderSync.Outcome)
	assert.Contains(t, result.ProviderSync.Reason, "cognito unavailable")
	assert.Empty(t, result.Principal.ExternalSubject)

	// The authoritative record exists regardless.
	_, err = orchestrator.Get(ctx, result.Principal.ID)
	assert.NoError(t, err)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	orchestrator := newTestOrchestrator(store, adapter, nil)
	orchestrator.newID = func() string { return "fixed-id" }
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)

	_, err := orchestrator.Create(ctx, CreateUserRequest{AccountID: "acct1", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = orchestrator.Create(ctx, CreateUserRequest{AccountID: "acct1", Email: "b@example.com"})
	require.Error(t, err)
	assert.True(t, kv.IsTransactFailed(err))
}

func TestCreateValidatesInput(t *testing.T) {
	orchestrator := newTestOrchestrator(kv.NewMemoryStore(), &fakeAdapter{}, nil)

	_, err := orchestrator.Create(context.Background(), CreateUserRequest{Email: "a@example.com"})
	assert.Error(t, err)

	_, err = orchestrator.Create(context.Background(), CreateUserRequest{AccountID: "acct1"})
	assert.Error(t, err)
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	orchestrator := newTestOrchestrator(store, adapter, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID: "acct1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	newName := "Grace"
	inactive := directory.StatusInactive
	result, err := orchestrator.Update(ctx, created.Principal.ID, UpdateUserRequest{
		FirstName: &newName,
		Status:    &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", result.Principal.FirstName)
	assert.Equal(t, directory.StatusInactive, result.Principal.Status)
	// Untouched fields survive.
	assert.Equal(t, "Lovelace", result.Principal.LastName)

	stored, err := orchestrator.Get(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", stored.FirstName)
	assert.Equal(t, "Lovelace", stored.LastName)
	// The provider subject is never cleared by updates.
	assert.Equal(t, "sub-123", stored.ExternalSubject)

	require.Len(t, adapter.updateCalls, 1)
	assert.Equal(t, "Grace", adapter.updateCalls[0].FirstName)
}

func TestUpdateProviderFailureIsNonFatal(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true, updateErr: errors.New("upstream missing")}
	orchestrator := newTestOrchestrator(store, adapter, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{AccountID: "acct1", Email: "ada@example.com"})
	require.NoError(t, err)

	newName := "Grace"
	result, err := orchestrator.Update(ctx, created.Principal.ID, UpdateUserRequest{FirstName: &newName})
	require.NoError(t, err)
	assert.Equal(t, idp.OutcomeFailed, result.ProviderSync.Outcome)

	stored, err := orchestrator.Get(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", stored.FirstName)
}

func TestUpdateNotFound(t *testing.T) {
	orchestrator := newTestOrchestrator(kv.NewMemoryStore(), &fakeAdapter{}, nil)

	name := "Grace"
	_, err := orchestrator.Update(context.Background(), "missing", UpdateUserRequest{FirstName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEndDateLifecycle(t *testing.T) {
	store := kv.NewMemoryStore()
	orchestrator := newTestOrchestrator(store, &fakeAdapter{configured: true}, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{AccountID: "acct1", Email: "ada@example.com"})
	require.NoError(t, err)

	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	result, err := orchestrator.Update(ctx, created.Principal.ID, UpdateUserRequest{EndDate: &end})
	require.NoError(t, err)
	require.NotNil(t, result.Principal.EndDate)
	assert.True(t, result.Principal.EndDate.Equal(end))

	result, err = orchestrator.Update(ctx, created.Principal.ID, UpdateUserRequest{ClearEndDate: true})
	require.NoError(t, err)
	assert.Nil(t, result.Principal.EndDate)

	stored, err := orchestrator.Get(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EndDate)
}

func TestDeleteRemovesAllItems(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true}
	orchestrator := newTestOrchestrator(store, adapter, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID:     "acct1",
		Email:         "ada@example.com",
		WorkstreamIDs: []string{"ws1", "ws2"},
	})
	require.NoError(t, err)

	result, err := orchestrator.Delete(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ItemsDeleted)
	assert.Equal(t, idp.OutcomeUpdated, result.ProviderDelete.Outcome)
	require.Len(t, adapter.deleteCalls, 1)
	assert.Equal(t, "ada@example.com", adapter.deleteCalls[0])

	_, err = orchestrator.Get(ctx, created.Principal.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := store.Query(ctx, kv.UserPK(created.Principal.ID), kv.SortCondition{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteProviderFailureStillDeletes(t *testing.T) {
	store := kv.NewMemoryStore()
	adapter := &fakeAdapter{configured: true, deleteErr: errors.New("cognito unavailable")}
	orchestrator := newTestOrchestrator(store, adapter, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{AccountID: "acct1", Email: "ada@example.com"})
	require.NoError(t, err)

	result, err := orchestrator.Delete(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, idp.OutcomeFailed, result.ProviderDelete.Outcome)

	_, err = orchestrator.Get(ctx, created.Principal.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteNotFound(t *testing.T) {
	orchestrator := newTestOrchestrator(kv.NewMemoryStore(), &fakeAdapter{}, nil)

	_, err := orchestrator.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkstreamReplacementIsComplete(t *testing.T) {
	store := kv.NewMemoryStore()
	orchestrator := newTestOrchestrator(store, &fakeAdapter{configured: true}, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID:     "acct1",
		Email:         "ada@example.com",
		WorkstreamIDs: []string{"ws1", "ws2"},
	})
	require.NoError(t, err)

	require.NoError(t, orchestrator.ReplaceWorkstreams(ctx, created.Principal.ID, []string{"ws3"}))

	ids, err := orchestrator.GetWorkstreams(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws3"}, ids)

	// Clearing the set entirely is a valid replacement.
	require.NoError(t, orchestrator.ReplaceWorkstreams(ctx, created.Principal.ID, nil))
	ids, err = orchestrator.GetWorkstreams(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWorkstreamReplacementWithOverlap(t *testing.T) {
	store := kv.NewMemoryStore()
	orchestrator := newTestOrchestrator(store, &fakeAdapter{configured: true}, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID:     "acct1",
		Email:         "ada@example.com",
		WorkstreamIDs: []string{"ws1", "ws2"},
	})
	require.NoError(t, err)

	// ws2 survives both sets, so the write must not touch its row.
	require.NoError(t, orchestrator.ReplaceWorkstreams(ctx, created.Principal.ID, []string{"ws2", "ws3"}))

	ids, err := orchestrator.GetWorkstreams(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws2", "ws3"}, ids)

	// Replacing with the identical set is a no-op, not an error.
	require.NoError(t, orchestrator.ReplaceWorkstreams(ctx, created.Principal.ID, []string{"ws3", "ws2"}))
	ids, err = orchestrator.GetWorkstreams(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws2", "ws3"}, ids)
}

func TestWorkstreamReplacementDeduplicatesRequest(t *testing.T) {
	store := kv.NewMemoryStore()
	orchestrator := newTestOrchestrator(store, &fakeAdapter{configured: true}, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID: "acct1",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, orchestrator.ReplaceWorkstreams(ctx, created.Principal.ID, []string{"ws1", "ws1", "ws2"}))

	ids, err := orchestrator.GetWorkstreams(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws1", "ws2"}, ids)
}

func TestCreateDeduplicatesWorkstreams(t *testing.T) {
	store := kv.NewMemoryStore()
	orchestrator := newTestOrchestrator(store, &fakeAdapter{configured: true}, nil)
	ctx := context.Background()

	seedAccount(t, store, "acct1", 5)
	created, err := orchestrator.Create(ctx, CreateUserRequest{
		AccountID:     "acct1",
		Email:         "ada@example.com",
		WorkstreamIDs: []string{"ws1", "ws1", "ws2"},
	})
	require.NoError(t, err)

	ids, err := orchestrator.GetWorkstreams(ctx, created.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ws1", "ws2"}, ids)
}

func TestWorkstreamsNotFound(t *testing.T) {
	orchestrator := newTestOrchestrator(kv.NewMemoryStore(), &fakeAdapter{}, nil)

	_, err := orchestrator.GetWorkstreams(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = orchestrator.ReplaceWorkstreams(context.Background(), "missing", []string{"ws1"})
	assert.ErrorIs(t, err, ErrNotFound)
}
