// Package users orchestrates the principal lifecycle: license-gated
// creation, in-place update, and deletion, each composed from the capacity
// gate, the identity-provider adapter, and the store.
//
// The ordering inside Create is fixed and load-bearing: the capacity gate
// runs before any write, the provider call is a best-effort side effect, and
// the atomic store persist comes last so a provider failure can never block
// the authoritative record. A provider principal created in step two is not
// rolled back when the persist fails; reconciliation repairs such orphans.
//
// Provider and notification outcomes are returned to the caller as tagged
// results rather than raised as errors, so call sites decide how to surface
// soft failures.
package users
