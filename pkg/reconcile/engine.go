package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pantheon-ops/tenantd/pkg/directory"
	"github.com/pantheon-ops/tenantd/pkg/idp"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/notify"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// ErrNotConfigured is returned when reconciliation is requested without a
// usable identity provider configuration. No scan is performed.
var ErrNotConfigured = errors.New("reconcile: identity provider is not configured")

// Outcome classifies the handling of one selected principal.
type Outcome string

const (
	OutcomeProvisioned Outcome = "provisioned"
	OutcomeUpdated     Outcome = "updated"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

// Options scope a reconciliation run.
type Options struct {
	// AccountID limits selection to one tenant; empty scans all tenants.
	AccountID string `json:"account_id,omitempty"`

	// DryRun selects and classifies without writing to the store or the
	// provider.
	DryRun bool `json:"dry_run,omitempty"`

	// IncludeInactive also selects principals that are not active.
	IncludeInactive bool `json:"include_inactive,omitempty"`
}

// Detail records the handling of one principal.
type Detail struct {
	UserID  string  `json:"user_id"`
	Email   string  `json:"email"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	TotalScanned      int      `json:"total_scanned"`
	MissingExternalID int      `json:"missing_external_id"`
	Provisioned       int      `json:"provisioned"`
	Updated           int      `json:"updated"`
	Skipped           int      `json:"skipped"`
	Failed            int      `json:"failed"`
	Details           []Detail `json:"details"`
}

func (s *Summary) record(d Detail) {
	s.Details = append(s.Details, d)
	switch d.Outcome {
	case OutcomeProvisioned:
		s.Provisioned++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Engine drives reconciliation runs.
type Engine struct {
	store    kv.Store
	provider idp.Adapter
	notifier notify.Dispatcher
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewEngine creates a reconciliation engine. notifier and metrics may be
// nil.
func NewEngine(store kv.Store, provider idp.Adapter, notifier notify.Dispatcher, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	if notifier == nil {
		notifier = notify.NoopDispatcher{}
	}
	return &Engine{
		store:    store,
		provider: provider,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Reconcile selects principals lacking an external subject id and
// provisions them upstream. Items are processed sequentially to bound the
// provider call rate; one item's failure never stops the run.
func (e *Engine) Reconcile(ctx context.Context, opts Options) (*Summary, error) {
	if !e.provider.IsConfigured() {
		return nil, ErrNotConfigured
	}

	started := e.now()
	mode := "live"
	if opts.DryRun {
		mode = "dry_run"
	}

	selected, scanned, err := e.selectPrincipals(ctx, opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalScanned:      scanned,
		MissingExternalID: len(selected),
		Details:           []Detail{},
	}
	for _, principal := range selected {
		summary.record(e.reconcileOne(ctx, principal, opts.DryRun))
	}

	if e.metrics != nil {
		e.metrics.ReconcileRunsTotal.WithLabelValues(mode).Inc()
		e.metrics.ReconcileDuration.Observe(e.now().Sub(started).Seconds())
		for _, d := range summary.Details {
			e.metrics.ReconcileOutcomesTotal.WithLabelValues(string(d.Outcome)).Inc()
		}
	}
	e.logger.WithFields(map[string]any{
		"mode":        mode,
		"scanned":     summary.TotalScanned,
		"selected":    summary.MissingExternalID,
		"provisioned": summary.Provisioned,
		"updated":     summary.Updated,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
	}).Info("reconciliation run finished")
	return summary, nil
}

func (e *Engine) selectPrincipals(ctx context.Context, opts Options) ([]*directory.Principal, int, error) {
	var items []kv.Item
	var err error
	if opts.AccountID != "" {
		items, err = e.store.QueryByIndex(ctx, kv.IndexByTenant, kv.AccountUsersPK(opts.AccountID), kv.SortCondition{})
	} else {
		items, err = e.store.QueryByIndex(ctx, kv.IndexByType, kv.EntityTypeUser, kv.SortCondition{})
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan principals: %w", err)
	}

	now := e.now().UTC()
	var selected []*directory.Principal
	for _, item := range items {
		p, err := directory.PrincipalFromItem(item)
		if err != nil {
			e.logger.WithError(err).Warn("skipping malformed principal record")
			continue
		}
		if p.ExternalSubject != "" {
			continue
		}
		if !p.IsActive(now) && !opts.IncludeInactive {
			continue
		}
		selected = append(selected, p)
	}
	return selected, len(items), nil
}

// reconcileOne handles a single principal. Every failure path is converted
// into a failed Detail so the caller's loop keeps going.
func (e *Engine) reconcileOne(ctx context.Context, principal *directory.Principal, dryRun bool) Detail {
	detail := Detail{UserID: principal.ID, Email: principal.Email}

	if dryRun {
		detail.Outcome = OutcomeSkipped
		detail.Reason = "dry run"
		return detail
	}

	provisioned, err := e.provider.CreateUser(ctx, idp.Profile{
		Email:     principal.Email,
		FirstName: principal.FirstName,
		LastName:  principal.LastName,
		AccountID: principal.AccountID,
	})
	if err != nil {
		detail.Outcome = OutcomeFailed
		detail.Reason = err.Error()
		return detail
	}
	if provisioned.ExternalSubject == "" {
		detail.Outcome = OutcomeSkipped
		detail.Reason = "provider returned no subject id"
		if provisioned.Reason != "" {
			detail.Reason = provisioned.Reason
		}
		return detail
	}

	err = e.store.Update(ctx, directory.PrincipalKey(principal.ID), map[string]any{
		directory.AttrExternalSubject: provisioned.ExternalSubject,
		directory.AttrUpdatedAt:       e.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		detail.Outcome = OutcomeFailed
		detail.Reason = fmt.Sprintf("failed to patch subject id: %v", err)
		return detail
	}

	if provisioned.Created() {
		detail.Outcome = OutcomeProvisioned
		if provisioned.TemporaryPassword != "" {
			_, err := e.notifier.SendCredentialProvisionedEmail(ctx, notify.CredentialNotice{
				Recipient:         principal.Email,
				TemporaryPassword: provisioned.TemporaryPassword,
			})
			if err != nil {
				e.logger.WithError(err).WithField("email", principal.Email).
					Warn("credential notification failed")
			}
		}
	} else {
		detail.Outcome = OutcomeUpdated
	}
	return detail
}
