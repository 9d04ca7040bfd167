// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ud"

type Metrics struct {
	registry *prometheus.Registry

	// InboundTotal counts /inbound/check calls. Labels: status
	InboundTotal *prometheus.CounterVec
	// InboundLatency measures /inbound/check latency. Labels: status
	InboundLatency *prometheus.HistogramVec
	// FeedbackTotal counts /inbound/feedback calls. Labels: status
	FeedbackTotal *prometheus.CounterVec
	// FeedbackLatency measures /inbound/feedback latency. Labels: status
	FeedbackLatency *prometheus.HistogramVec

	// RuleRefreshTotal counts repository fetches. Labels: trigger, outcome
	RuleRefreshTotal *prometheus.CounterVec
	// RuleRefreshSeconds measures repository fetch time. Labels: trigger
	RuleRefreshSeconds *prometheus.HistogramVec
	// RulesLoaded is the size of the last installed snapshot.
	RulesLoaded prometheus.Gauge
	// StaleServedTotal counts requests answered from a previous bucket's
	// snapshot.
	StaleServedTotal prometheus.Counter
}

// New registers all collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	latencyBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	return &Metrics{
		registry: reg,
		InboundTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_by_status",
			Help:      "UD Inbound invocations counter",
		}, []string{"status"}),
		InboundLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inbound_latency_seconds",
			Help:      "UD Inbound latencies",
			Buckets:   latencyBuckets,
		}, []string{"status"}),
		FeedbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_by_status",
			Help:      "UD Feedback invocations counter",
		}, []string{"status"}),
		FeedbackLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feedback_latency_seconds",
			Help:      "UD Feedback requests latencies",
			Buckets:   latencyBuckets,
		}, []string{"status"}),
		RuleRefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "refresh_total",
			Help:      "Rule repository fetches by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		RuleRefreshSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "refresh_seconds",
			Help:      "Rule repository fetch duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"trigger"}),
		RulesLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "loaded",
			Help:      "Number of rules in the current snapshot",
		}),
		StaleServedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "stale_served_total",
			Help:      "Requests served from the previous snapshot while a refresh was pending or had failed",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveInbound records one /inbound/check call.
func (m *Metrics) ObserveInbound(status int, took time.Duration) {
	s := strconv.Itoa(status)
	m.InboundTotal.WithLabelValues(s).Inc()
	m.InboundLatency.WithLabelValues(s).Observe(took.Seconds())
}

// ObserveFeedback records one /inbound/feedback call.
func (m *Metrics) ObserveFeedback(status int, took time.Duration) {
	s := strconv.Itoa(status)
	m.FeedbackTotal.WithLabelValues(s).Inc()
	m.FeedbackLatency.WithLabelValues(s).Observe(took.Seconds())
}

// ObserveRefresh implements rules.CacheObserver.
func (m *Metrics) ObserveRefresh(trigger string, rules int, took time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.RuleRefreshTotal.WithLabelValues(trigger, outcome).Inc()
	m.RuleRefreshSeconds.WithLabelValues(trigger).Observe(took.Seconds())
	if err == nil {
		m.RulesLoaded.Set(float64(rules))
	}
}

// ObserveStale implements rules.CacheObserver.
func (m *Metrics) ObserveStale() {
	m.StaleServedTotal.Inc()
}
