// Package license computes and enforces the per-account active-user ceiling.
//
// The gate is read-only: ValidateUserCreation checks the ceiling but reserves
// nothing. The subsequent persist is a separate write, so two concurrent
// creations at exactly the capacity boundary can both pass the check and
// overshoot the ceiling by one. This check-then-act gap is a known property
// of the system, kept deliberately; closing it would require a conditional
// counter write in the store.
package license
