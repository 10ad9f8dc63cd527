package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry served on /metrics
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storehub_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "storehub_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// InboundDeliveries counts processed inbound webhook deliveries by topic
	// and outcome (success, failed, pending, ignored, duplicate, ping, rejected)
	InboundDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storehub_webhook_inbound_deliveries_total", Help: "Inbound webhook deliveries by topic and outcome."},
		[]string{"topic", "outcome"},
	)
	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "storehub_webhook_processing_ms", Help: "Inbound delivery processing time in ms.", Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}},
		[]string{"topic"},
	)
	Retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storehub_webhook_retries_total", Help: "Retried deliveries by outcome."},
		[]string{"outcome"},
	)
	AutoDisabled = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "storehub_webhook_auto_disabled_total", Help: "Webhooks disabled after repeated failures."},
	)

	// RemoteCalls counts WooCommerce REST calls by operation and outcome
	RemoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storehub_woocommerce_calls_total", Help: "WooCommerce REST API calls."},
		[]string{"op", "outcome"},
	)
	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "storehub_woocommerce_call_duration_seconds", Help: "WooCommerce REST API call duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
)

var regOnce sync.Once

// RegisterDefault registers collectors to Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(InboundDeliveries)
		Registry.MustRegister(ProcessingDuration)
		Registry.MustRegister(Retries)
		Registry.MustRegister(AutoDisabled)
		Registry.MustRegister(RemoteCalls)
		Registry.MustRegister(RemoteLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
