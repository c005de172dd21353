// Package kv provides a single-table key-value store abstraction used by all
// directory components.
//
// # Overview
//
// Every entity lives in one logical table addressed by a composite primary
// key (partition + sort) and optionally projected into two secondary indexes
// for reverse lookups:
//
//   - IndexByType: partition keyed by entity type (e.g. ENTITY#USER), used
//     for type-scoped scans without touching the primary keyspace.
//   - IndexByTenant: partition keyed by account (e.g. ACCOUNT#<id>#USERS),
//     used to list an account's principals.
//
// Multi-hop relations (user -> group -> role -> permission) are stored as
// key-prefixed item collections and resolved by callers issuing sequential
// prefix queries; the store performs no joins.
//
// # Write semantics
//
//	TransactWrite  all-or-nothing across at most MaxTransactOps item
//	               operations; a failed precondition aborts every operation.
//	BatchWrite     chunks operations into groups of MaxBatchSize and issues
//	               them sequentially. Earlier chunks are NOT rolled back when
//	               a later chunk fails; the failure is reported as a
//	               PartialBatchError so callers can re-issue the remainder
//	               (all batch operations here are idempotent deletes/puts).
//
// # Backends
//
//   - DynamoStore: production backend on DynamoDB single-table layout.
//   - PostgresStore: the same layout on a single Postgres table, for
//     environments without DynamoDB.
//   - MemoryStore: in-process map-backed store for tests.
package kv
