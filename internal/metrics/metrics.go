package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus collectors for the fulfillment, recovery and catalog flows.
var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esim_orders_total",
			Help: "Order units processed by the completion orchestrator, by terminal outcome",
		},
		[]string{"outcome"},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esim_provider_requests_total",
			Help: "Requests issued to the provisioning API, by operation and result kind",
		},
		[]string{"operation", "result"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esim_provider_request_duration_seconds",
			Help:    "Duration of provisioning API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RecoveryPassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "esim_recovery_passes_total",
			Help: "Recovery passes executed",
		},
	)

	PendingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "esim_pending_orders",
			Help: "Entries left in the pending-order store after the last recovery pass",
		},
	)

	CatalogItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esim_catalog_items_total",
			Help: "Catalog items handled by the sync flow, by result",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)

	HTTPPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_panics_total",
			Help: "Panics recovered while serving HTTP requests",
		},
		[]string{"handler"},
	)
)

// Register registers all collectors on reg. Registering twice on the same
// registry is a no-op, which keeps warm serverless invocations safe.
func Register(reg prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		OrdersTotal,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		RecoveryPassesTotal,
		PendingOrders,
		CatalogItemsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPPanicsTotal,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
