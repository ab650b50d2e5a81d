// Package metrics exposes LocalFlow's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "localflow"

// Collector holds all Prometheus metrics for the application. Each Collector
// owns its registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// Planning
	PlanRequests *prometheus.CounterVec
	PlanDuration *prometheus.HistogramVec
	SessionState *prometheus.GaugeVec

	// Model calls
	LLMCalls    *prometheus.CounterVec
	LLMDuration *prometheus.HistogramVec
	LLMTokens   *prometheus.CounterVec

	// Location resolution
	Resolutions        *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with the given namespace. An empty
// namespace uses DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		PlanRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_requests_total",
				Help:      "Generation and recalculation requests by outcome",
			},
			[]string{"operation", "outcome"},
		),
		PlanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_duration_seconds",
				Help:      "Time from request to installed itinerary, enrichment included",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"operation"},
		),
		SessionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_state",
				Help:      "1 for the current recalculation state, 0 otherwise",
			},
			[]string{"state"},
		),
		LLMCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_calls_total",
				Help:      "Model calls by capability, endpoint and error class",
			},
			[]string{"capability", "mode", "endpoint", "class"},
		),
		LLMDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_call_duration_seconds",
				Help:      "Model call latency",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"capability", "mode"},
		),
		LLMTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens consumed by kind",
			},
			[]string{"capability", "kind"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Location lookups by outcome",
			},
			[]string{"outcome"},
		),
		ResolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Location lookup latency, cache hits included",
				Buckets:   prometheus.DefBuckets,
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	c.registry.MustRegister(
		c.PlanRequests,
		c.PlanDuration,
		c.SessionState,
		c.LLMCalls,
		c.LLMDuration,
		c.LLMTokens,
		c.Resolutions,
		c.ResolutionDuration,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObservePlan records a finished generate or recalculate request.
func (c *Collector) ObservePlan(operation, outcome string, d time.Duration) {
	c.PlanRequests.WithLabelValues(operation, outcome).Inc()
	if outcome == "ok" {
		c.PlanDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// SetState marks state as current among states.
func (c *Collector) SetState(state string, states ...string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		c.SessionState.WithLabelValues(s).Set(v)
	}
}

// ObserveLLMCall is an llm.Client observer.
func (c *Collector) ObserveLLMCall(rec llm.CallRecord) {
	capability := string(rec.Capability)
	c.LLMCalls.WithLabelValues(capability, string(rec.Mode), rec.Endpoint, llm.Classify(rec.Err)).Inc()
	c.LLMDuration.WithLabelValues(capability, string(rec.Mode)).Observe(rec.Duration.Seconds())
	if rec.Usage.PromptTokens > 0 {
		c.LLMTokens.WithLabelValues(capability, "prompt").Add(float64(rec.Usage.PromptTokens))
	}
	if rec.Usage.CompletionTokens > 0 {
		c.LLMTokens.WithLabelValues(capability, "completion").Add(float64(rec.Usage.CompletionTokens))
	}
}

// ObserveResolve is a resolver observer.
func (c *Collector) ObserveResolve(outcome resolver.Outcome, d time.Duration) {
	c.Resolutions.WithLabelValues(string(outcome)).Inc()
	c.ResolutionDuration.Observe(d.Seconds())
}

// ObserveHTTP records a served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
