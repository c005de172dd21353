package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/idp"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/license"
	"github.com/pantheon-ops/tenantd/pkg/notify"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// Orchestrator composes the capacity gate, the identity-provider adapter,
// and the store into the principal lifecycle operations.
type Orchestrator struct {
	store    kv.Store
	gate     *license.Gate
	provider idp.Adapter
	notifier notify.Dispatcher
	logger   *observability.Logger

	now   func() time.Time
	newID func() string
}

// NewOrchestrator creates a lifecycle orchestrator.
func NewOrchestrator(store kv.Store, gate *license.Gate, provider idp.Adapter, notifier notify.Dispatcher, logger *observability.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notify.NoopDispatcher{}
	}
	return &Orchestrator{
		store:    store,
		gate:     gate,
		provider: provider,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Create runs the fixed creation sequence: capacity gate, best-effort
// provider provisioning, then the atomic persist of the principal and its
// workstream assignments. A provider failure never aborts the creation; a
// persist failure aborts it entirely and leaves no partial state (the
// upstream principal, if any, is repaired later by reconciliation).
func (o *Orchestrator) Create(ctx context.Context, req CreateUserRequest) (*CreateUserResult, error) {
	if req.AccountID == "" || req.Email == "" {
		return nil, errors.New("users: account id and email are required")
	}
	workstreamIDs := dedupeIDs(req.WorkstreamIDs)
	if len(workstreamIDs) > kv.MaxTransactOps-1 {
		return nil, fmt.Errorf("users: at most %d workstream assignments per principal", kv.MaxTransactOps-1)
	}

	// Step 1: the gate must pass before anything is written anywhere.
	capacity, err := o.gate.ValidateUserCreation(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	result := &CreateUserResult{
		ProviderSync: SideEffect{Outcome: idp.OutcomeSkipped},
	}

	// Step 2: best-effort provider provisioning.
	var externalSubject string
	provisioned, err := o.provider.CreateUser(ctx, idp.Profile{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		AccountID: req.AccountID,
	})
	if err != nil {
		o.logger.WithError(err).WithField("email", req.Email).
			Warn("identity provider provisioning failed; creating record anyway")
		result.ProviderSync = SideEffect{Outcome: idp.OutcomeFailed, Reason: err.Error()}
	} else {
		externalSubject = provisioned.ExternalSubject
		result.ProviderSync = SideEffect{Outcome: provisioned.Outcome, Reason: provisioned.Reason}

		if provisioned.TemporaryPassword != "" {
			sent, err := o.notifier.SendCredentialProvisionedEmail(ctx, notify.CredentialNotice{
				Recipient:         req.Email,
				TemporaryPassword: provisioned.TemporaryPassword,
			})
			if err != nil {
				o.logger.WithError(err).WithField("email", req.Email).
					Warn("credential notification failed")
			}
			result.Notification = sent
		}
	}

	// Step 3: the authoritative, atomic persist.
	now := o.now().UTC()
	principal := &directory.Principal{
		ID:              o.newID(),
		AccountID:       req.AccountID,
		EnterpriseID:    req.EnterpriseID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		AssignedRole:    req.AssignedRole,
		Status:          directory.StatusActive,
		ExternalSubject: externalSubject,
		EndDate:         req.EndDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	ops := []kv.WriteOp{{Put: principal.Item(), IfNotExists: true}}
	for _, wsID := range workstreamIDs {
		assignment := directory.WorkstreamAssignment{UserID: principal.ID, WorkstreamID: wsID}
		ops = append(ops, kv.WriteOp{Put: assignment.Item()})
	}
	if err := o.store.TransactWrite(ctx, ops); err != nil {
		return nil, fmt.Errorf("failed to persist principal: %w", err)
	}

	result.Principal = principal
	result.Capacity = capacity.AfterCreation()
	return result, nil
}

// Update applies a partial field set to an existing principal, then
// best-effort syncs the changed attributes upstream. The external-provider
// subject id is never touched by updates.
func (o *Orchestrator) Update(ctx context.Context, userID string, req UpdateUserRequest) (*UpdateUserResult, error) {
	principal, err := o.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return &UpdateUserResult{Principal: principal, ProviderSync: SideEffect{Outcome: idp.OutcomeSkipped, Reason: "no changes"}}, nil
	}

	fields := map[string]any{
		directory.AttrUpdatedAt: o.now().UTC().Format(time.RFC3339),
	}
	if req.FirstName != nil {
		principal.FirstName = *req.FirstName
		fields["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		principal.LastName = *req.LastName
		fields["last_name"] = *req.LastName
	}
	if req.AssignedRole != nil {
		principal.AssignedRole = *req.AssignedRole
		fields["assigned_role"] = *req.AssignedRole
	}
	if req.Status != nil {
		principal.Status = *req.Status
		fields["status"] = string(*req.Status)
	}
	if req.ClearEndDate {
		principal.EndDate = nil
		fields["end_date"] = ""
	} else if req.EndDate != nil {
		end := req.EndDate.UTC()
		principal.EndDate = &end
		fields["end_date"] = end.Format(time.RFC3339)
	}

	if err := o.store.Update(ctx, directory.PrincipalKey(userID), fields); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update principal: %w", err)
	}
	principal.UpdatedAt = o.now().UTC()

	result := &UpdateUserResult{Principal: principal, ProviderSync: SideEffect{Outcome: idp.OutcomeUpdated}}
	if err := o.provider.UpdateUser(ctx, idp.Profile{
		Email:     principal.Email,
		FirstName: principal.FirstName,
		LastName:  principal.LastName,
		AccountID: principal.AccountID,
	}); err != nil {
		o.logger.WithError(err).WithField("user_id", userID).
			Warn("identity provider attribute sync failed")
		result.ProviderSync = SideEffect{Outcome: idp.OutcomeFailed, Reason: err.Error()}
	}
	return result, nil
}

// Delete removes the principal and every item under its partition, after a
// best-effort deletion of the upstream provider principal. The local batch
// delete is chunked and idempotent: a partial failure can be retried.
func (o *Orchestrator) Delete(ctx context.Context, userID string) (*DeleteUserResult, error) {
	items, err := o.store.Query(ctx, kv.UserPK(userID), kv.SortCondition{})
	if err != nil {
		return nil, fmt.Errorf("failed to load principal items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	var email string
	for _, item := range items {
		if item.Key().SortKey == kv.MetadataSK {
			email = item.String("email")
			break
		}
	}

	result := &DeleteUserResult{ProviderDelete: SideEffect{Outcome: idp.OutcomeSkipped, Reason: "no email on record"}}
	if email != "" {
		deleted, err := o.provider.DeleteUser(ctx, email)
		switch {
		case err != nil:
			o.logger.WithError(err).WithField("user_id", userID).
				Warn("identity provider deletion failed; deleting record anyway")
			result.ProviderDelete = SideEffect{Outcome: idp.OutcomeFailed, Reason: err.Error()}
		case deleted.Skipped:
			result.ProviderDelete = SideEffect{Outcome: idp.OutcomeSkipped, Reason: deleted.Reason}
		default:
			result.ProviderDelete = SideEffect{Outcome: idp.OutcomeUpdated, Reason: "deleted upstream"}
		}
	}

	ops := make([]kv.WriteOp, 0, len(items))
	for _, item := range items {
		key := item.Key()
		ops = append(ops, kv.WriteOp{Delete: &key})
	}
	if err := o.store.BatchWrite(ctx, ops); err != nil {
		return nil, fmt.Errorf("failed to delete principal items: %w", err)
	}

	result.ItemsDeleted = len(ops)
	return result, nil
}

// Get returns the principal's metadata record, or ErrNotFound.
func (o *Orchestrator) Get(ctx context.Context, userID string) (*directory.Principal, error) {
	item, err := o.store.Get(ctx, directory.PrincipalKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	return directory.PrincipalFromItem(item)
}

// GetWorkstreams returns the principal's assigned workstream ids.
func (o *Orchestrator) GetWorkstreams(ctx context.Context, userID string) ([]string, error) {
	if _, err := o.Get(ctx, userID); err != nil {
		return nil, err
	}

	items, err := o.store.Query(ctx, kv.UserPK(userID), kv.SortBeginsWith("WORKSTREAM#"))
	if err != nil {
		return nil, fmt.Errorf("failed to list workstream assignments: %w", err)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, directory.WorkstreamFromItem(item).WorkstreamID)
	}
	return ids, nil
}

// ReplaceWorkstreams replaces the principal's workstream assignments as a
// complete set, writing only the difference: assignments absent from the
// request are deleted and new ones inserted in one atomic write. Rows shared
// by both sets are left untouched, since a transaction may not contain two
// operations on the same key.
func (o *Orchestrator) ReplaceWorkstreams(ctx context.Context, userID string, workstreamIDs []string) error {
	if _, err := o.Get(ctx, userID); err != nil {
		return err
	}

	existing, err := o.store.Query(ctx, kv.UserPK(userID), kv.SortBeginsWith("WORKSTREAM#"))
	if err != nil {
		return fmt.Errorf("failed to list workstream assignments: %w", err)
	}

	requested := dedupeIDs(workstreamIDs)
	want := make(map[string]bool, len(requested))
	for _, wsID := range requested {
		want[wsID] = true
	}
	have := make(map[string]bool, len(existing))

	ops := make([]kv.WriteOp, 0, len(existing)+len(requested))
	for _, item := range existing {
		wsID := directory.WorkstreamFromItem(item).WorkstreamID
		have[wsID] = true
		if want[wsID] {
			continue
		}
		key := item.Key()
		ops = append(ops, kv.WriteOp{Delete: &key})
	}
	for _, wsID := range requested {
		if have[wsID] {
			continue
		}
		assignment := directory.WorkstreamAssignment{UserID: userID, WorkstreamID: wsID}
		ops = append(ops, kv.WriteOp{Put: assignment.Item()})
	}
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > kv.MaxTransactOps {
		return fmt.Errorf("users: workstream replacement needs %d operations, limit is %d", len(ops), kv.MaxTransactOps)
	}

	if err := o.store.TransactWrite(ctx, ops); err != nil {
		return fmt.Errorf("failed to replace workstream assignments: %w", err)
	}
	return nil
}

// dedupeIDs drops repeated identifiers, preserving first-seen order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
