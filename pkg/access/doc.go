// Package access resolves the set of tenants a caller may see.
//
// Platform administrators see every account in the store. Every other
// caller sees the accounts in which an active principal carries their
// email. Account and enterprise display names come from point lookups
// behind a small in-process cache; a failed lookup degrades to a
// placeholder name instead of failing the resolution.
package access
