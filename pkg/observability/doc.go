// Package observability provides the service's structured JSON logging,
// Prometheus metrics, health probes, and graceful shutdown plumbing.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("account_id", accountID).Info("principal created")
//
// Soft failures from best-effort side channels are logged by the call site
// that received the tagged outcome; nothing in this package swallows errors
// on its own.
//
// # Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.CapacityRejectionsTotal.WithLabelValues(accountID).Inc()
//	metrics.ReconcileOutcomesTotal.WithLabelValues("provisioned").Inc()
package observability
