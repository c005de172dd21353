// Package reconcile repairs drift between the directory store and the
// external identity provider.
//
// The engine selects principals with no external subject id, provisions
// each upstream, and patches the subject back onto the local record. Items
// are processed one at a time; a failure on one item is recorded and does
// not stop the run. Dry runs select and classify without writing anywhere.
//
// A Scheduler wraps the engine for periodic execution on a cron expression.
package reconcile
