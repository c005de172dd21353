package idp

import (
	"context"
	"errors"
	"fmt"
)

// Outcome tags the result of a best-effort provider call so call sites can
// log it without treating it as an error.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Profile is the subset of principal attributes mirrored to the provider.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
	AccountID string
}

// ProvisionResult is the outcome of CreateUser.
type ProvisionResult struct {
	Outcome           Outcome `json:"outcome"`
	ExternalSubject   string  `json:"external_subject,omitempty"`
	TemporaryPassword string  `json:"-"`
	Reason            string  `json:"reason,omitempty"`
}

// Created reports whether the upstream principal was newly created, as
// opposed to an idempotent update of a pre-existing one.
func (r *ProvisionResult) Created() bool { return r.Outcome == OutcomeCreated }

// DeleteResult is the outcome of DeleteUser.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// Adapter is the identity-provider contract consumed by the lifecycle
// orchestrator and the reconciliation engine.
type Adapter interface {
	// CreateUser provisions a principal upstream. Idempotent: an existing
	// email is updated and reported as OutcomeUpdated.
	CreateUser(ctx context.Context, profile Profile) (*ProvisionResult, error)

	// UpdateUser syncs mutable attributes upstream. A missing upstream
	// principal is an error the caller is expected to log and swallow.
	UpdateUser(ctx context.Context, profile Profile) error

	// DeleteUser removes the upstream principal by email.
	DeleteUser(ctx context.Context, email string) (*DeleteResult, error)

	// IsConfigured reports whether the adapter can reach a real provider.
	// Batch reconciliation refuses to run when false.
	IsConfigured() bool
}

// ProviderUnavailableError wraps a transient provider failure. Callers treat
// it as non-fatal to the authoritative record.
type ProviderUnavailableError struct {
	Op  string
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("identity provider unavailable during %s: %v", e.Op, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// IsProviderUnavailable checks if an error is a ProviderUnavailableError.
func IsProviderUnavailable(err error) bool {
	var pu *ProviderUnavailableError
	return errors.As(err, &pu)
}
