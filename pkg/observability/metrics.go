package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Lifecycle metrics
	UserCreationsTotal      *prometheus.CounterVec
	CapacityRejectionsTotal *prometheus.CounterVec
	ProviderSyncTotal       *prometheus.CounterVec

	// Reconciliation metrics
	ReconcileRunsTotal     *prometheus.CounterVec
	ReconcileOutcomesTotal *prometheus.CounterVec
	ReconcileDuration      prometheus.Histogram

	// Resolution metrics
	PermissionResolvesTotal *prometheus.CounterVec
	ResolveCacheHitsTotal   prometheus.Counter
	ResolveCacheMissesTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_store_operations_total",
				Help: "Total number of key-value store operations",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantd_store_operation_duration_seconds",
				Help:    "Key-value store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		UserCreationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_user_creations_total",
				Help: "Total number of principal creation attempts",
			},
			[]string{"status"},
		),
		CapacityRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_capacity_rejections_total",
				Help: "Creations rejected by the license capacity gate",
			},
			[]string{"account_id"},
		),
		ProviderSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_provider_sync_total",
				Help: "Identity provider side-effect outcomes",
			},
			[]string{"operation", "outcome"},
		),

		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_reconcile_runs_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"mode"},
		),
		ReconcileOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_reconcile_outcomes_total",
				Help: "Per-item reconciliation outcomes",
			},
			[]string{"outcome"},
		),
		ReconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tenantd_reconcile_duration_seconds",
				Help:    "Duration of a reconciliation run",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),

		PermissionResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantd_permission_resolves_total",
				Help: "Total number of permission resolutions",
			},
			[]string{"status"},
		),
		ResolveCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantd_resolve_cache_hits_total",
				Help: "Permission resolution cache hits",
			},
		),
		ResolveCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantd_resolve_cache_misses_total",
				Help: "Permission resolution cache misses",
			},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.UserCreationsTotal,
		m.CapacityRejectionsTotal,
		m.ProviderSyncTotal,
		m.ReconcileRunsTotal,
		m.ReconcileOutcomesTotal,
		m.ReconcileDuration,
		m.PermissionResolvesTotal,
		m.ResolveCacheHitsTotal,
		m.ResolveCacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
