package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelDecision  = "decision"
	LabelStatus    = "status"
	LabelMethod    = "method"
	LabelRoute     = "route"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelRoute, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fittrack_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// GateDecisionsTotal counts request gate outcomes
	GateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_gate_decisions_total",
			Help: "Total number of request gate decisions by kind",
		},
		[]string{LabelDecision},
	)

	// IdentityCallsTotal counts calls made to the identity service
	IdentityCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_identity_calls_total",
			Help: "Total number of identity service calls",
		},
		[]string{LabelOperation, LabelOutcome},
	)

	// StoreCallsTotal counts calls made to the data store
	StoreCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_store_calls_total",
			Help: "Total number of data store calls",
		},
		[]string{LabelOperation, LabelOutcome},
	)

	// StoreCallDuration tracks the duration of data store calls
	StoreCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fittrack_store_call_duration_seconds",
			Help:    "Duration of data store calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelOperation},
	)

	// ProxyRequestTotal counts requests rewritten to the proxy target
	ProxyRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fittrack_proxy_requests_total",
			Help: "Total number of requests forwarded to the proxy target",
		},
		[]string{LabelMethod, LabelStatus},
	)

	// ProxyRequestDuration tracks the duration of proxied requests
	ProxyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fittrack_proxy_request_duration_seconds",
			Help:    "Duration of requests forwarded to the proxy target in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request. route should be a
// template, not a raw path, to keep label cardinality bounded.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	RequestsTotal.WithLabelValues(method, route, http.StatusText(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordGateDecision records the branch the request gate took
func (c *Collector) RecordGateDecision(decision string) {
	if c == nil {
		return
	}
	GateDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordIdentityCall records an identity service call
func (c *Collector) RecordIdentityCall(operation string, err error) {
	if c == nil {
		return
	}
	IdentityCallsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

// RecordStoreCall records a data store call
func (c *Collector) RecordStoreCall(operation string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	StoreCallsTotal.WithLabelValues(operation, outcome(err)).Inc()
	StoreCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProxyRequest records a request forwarded to the proxy target
func (c *Collector) RecordProxyRequest(method string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	ProxyRequestTotal.WithLabelValues(method, http.StatusText(status)).Inc()
	ProxyRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
