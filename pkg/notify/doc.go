// Package notify dispatches credential-provisioned notifications. Dispatch
// is fire-and-forget: senders report a tagged result for logging and are
// never awaited for correctness.
package notify
