// Package observability exposes Prometheus metrics for the DOPA client and
// the gateway that serves it.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeError     = "error"
)

// ClientCollector bundles the client's Prometheus metrics. A nil collector is
// valid and records nothing.
type ClientCollector struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec
	CacheHits prometheus.Counter
	Retries   prometheus.Counter
}

// NewClientCollector registers client metrics against reg, defaulting to the
// global registry when nil. Registering twice on the same registry returns
// the existing collectors.
func NewClientCollector(reg prometheus.Registerer) (*ClientCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dopa_client_requests_total",
		Help: "Total number of DOPA service requests, labeled by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	requests, err := registerCounterVec(reg, requests, "dopa_client_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dopa_client_request_duration_seconds",
		Help:    "DOPA service request latency in seconds, including retries.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
	durations, err = registerHistogramVec(reg, durations, "dopa_client_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	cacheHits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dopa_client_cache_hits_total",
		Help: "Number of responses served from the on-disk cache.",
	}), "dopa_client_cache_hits_total")
	if err != nil {
		return nil, err
	}

	retries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dopa_client_retries_total",
		Help: "Number of retried DOPA service requests.",
	}), "dopa_client_retries_total")
	if err != nil {
		return nil, err
	}

	return &ClientCollector{
		gatherer:  gatherer,
		Requests:  requests,
		Durations: durations,
		CacheHits: cacheHits,
		Retries:   retries,
	}, nil
}

// ObserveRequest records one completed request.
func (c *ClientCollector) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Requests != nil {
		c.Requests.WithLabelValues(endpoint, outcome).Inc()
	}
	if c.Durations != nil {
		c.Durations.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

// IncCacheHits increments the cache hit counter.
func (c *ClientCollector) IncCacheHits() {
	if c == nil || c.CacheHits == nil {
		return
	}
	c.CacheHits.Inc()
}

// IncRetries increments the retry counter.
func (c *ClientCollector) IncRetries() {
	if c == nil || c.Retries == nil {
		return
	}
	c.Retries.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ClientCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
