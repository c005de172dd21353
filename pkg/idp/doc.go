// Package idp defines the external identity-provider contract and its AWS
// Cognito implementation.
//
// Provider calls are best-effort side effects from the point of view of the
// authoritative directory: callers catch failures, record them as tagged
// outcomes, and never let provider availability block a local write.
// CreateUser is idempotent; an email that already exists upstream is updated
// in place and reported as OutcomeUpdated rather than an error.
package idp
