// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	UpstreamErrors    prometheus.Counter

	BodyRewrites      *prometheus.CounterVec
	Substitutions     prometheus.Counter
	RewriteRulesTotal prometheus.Gauge
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewrite_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "route"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rewrite_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds, including the streamed body.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "route"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewrite_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rewrite_proxy_upstream_request_duration_seconds",
			Help:    "Time until the origin response head arrives, in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewrite_proxy_upstream_responses_total",
			Help: "Total origin responses by method and status code.",
		}, []string{"method", "status_code"}),

		UpstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewrite_proxy_upstream_errors_total",
			Help: "Total origin calls that failed before a response arrived.",
		}),

		BodyRewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewrite_proxy_body_rewrites_total",
			Help: "Request bodies passed through the rule table, by outcome.",
		}, []string{"result"}),

		Substitutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewrite_proxy_substitutions_total",
			Help: "Total literal substitutions applied across all request bodies.",
		}),

		RewriteRulesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewrite_proxy_rules",
			Help: "Number of rules in the active rule table.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.UpstreamErrors,
		m.BodyRewrites,
		m.Substitutions,
		m.RewriteRulesTotal,
	)

	return m
}

// Rewrite outcome label values.
const (
	RewriteModified  = "modified"
	RewriteUnchanged = "unchanged"
)

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// Route label values.
const (
	RouteHealth  = "health"
	RouteMetrics = "metrics"
	RouteProxy   = "proxy"
)

// RouteLabels maps requests onto a bounded route label. Every request that
// is answered neither by the health branch nor by the metrics endpoint is
// proxied, so it collapses into RouteProxy.
type RouteLabels struct {
	isHealth func(*http.Request) bool
	metrics  string
}

// NewRouteLabels builds a RouteLabels. isHealth must be the same predicate
// the router uses to pick the health branch; it may be nil when health is
// never served. An empty metricsPath means metrics are not served.
func NewRouteLabels(isHealth func(*http.Request) bool, metricsPath string) *RouteLabels {
	return &RouteLabels{isHealth: isHealth, metrics: metricsPath}
}

// Route returns the label for r.
func (l *RouteLabels) Route(r *http.Request) string {
	switch {
	case l.metrics != "" && r.Method == http.MethodGet && r.URL.Path == l.metrics:
		return RouteMetrics
	case l.isHealth != nil && l.isHealth(r):
		return RouteHealth
	default:
		return RouteProxy
	}
}
