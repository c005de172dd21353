// Package api exposes the directory over HTTP.
//
// # Overview
//
// The server wires the lifecycle orchestrator, the capacity gate, the
// permission and access resolvers, and the reconciliation engine into a
// JSON API under /api/v1. Every route runs behind the shared middleware
// chain (request id, logging, metrics, panic recovery).
//
// # Routes
//
// Principal lifecycle:
//
//	POST   /api/v1/users
//	GET    /api/v1/users/{id}
//	PUT    /api/v1/users/{id}
//	DELETE /api/v1/users/{id}
//	GET    /api/v1/users/{id}/workstreams
//	PUT    /api/v1/users/{id}/workstreams
//
// Tenant capacity:
//
//	GET /api/v1/accounts/{id}/capacity
//
// Resolution:
//
//	GET /api/v1/access?email=...&groups=a,b
//	GET /api/v1/permissions?email=...&account_id=...
//
// Reconciliation:
//
//	POST /api/v1/reconcile
//
// # Error Mapping
//
// Domain failures map onto status codes: a missing principal is 404, a
// tenant at its license ceiling is 409, reconciliation without a
// configured identity provider is 503, and a failed store transaction is
// 500.
package api
