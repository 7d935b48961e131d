// Package metrics provides a Prometheus-backed telemetry.Observer.
//
// Wrap a Limiter's check outcomes, quota events, and penalty events with
// Prometheus counters, gauges, and a histogram:
//
//	collector := metrics.NewCollector()
//	limiter := halt.NewLimiter(policy, store, halt.WithObserver(collector))
//
// Rate-limit metrics are partitioned by policy name and quota metrics by
// quota name; the penalty counter and severity histogram are unlabeled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krishna-kudari/halt/telemetry"
)

type config struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer
	buckets   []float64
}

// CollectorOption configures a Collector.
type CollectorOption func(*config)

// WithNamespace sets the Prometheus metric namespace (prefix).
func WithNamespace(ns string) CollectorOption {
	return func(c *config) { c.namespace = ns }
}

// WithSubsystem sets the Prometheus metric subsystem.
func WithSubsystem(sub string) CollectorOption {
	return func(c *config) { c.subsystem = sub }
}

// WithRegistry registers metrics with the given Registerer instead of
// prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) CollectorOption {
	return func(c *config) { c.registry = r }
}

// WithSeverityBuckets sets custom histogram buckets for violation severity.
func WithSeverityBuckets(b []float64) CollectorOption {
	return func(c *config) { c.buckets = b }
}

var defaultSeverityBuckets = []float64{.5, 1, 2, 3, 5, 8, 13, 21}

// Collector implements telemetry.Observer, recording:
//   - {namespace}_checks_total            counter   (policy)
//   - {namespace}_allowed_total            counter   (policy)
//   - {namespace}_blocked_total            counter   (policy)
//   - {namespace}_remaining                gauge     (policy, key)
//   - {namespace}_quota_checks_total       counter   (quota, decision)
//   - {namespace}_quota_exceeded_total     counter   (quota)
//   - {namespace}_penalties_applied_total  counter   ()
//   - {namespace}_violation_severity       histogram ()
//   - {namespace}_store_errors_total       counter   (policy)
//
// Default namespace is "halt".
type Collector struct {
	telemetry.NoopObserver

	checks          *prometheus.CounterVec
	allowed         *prometheus.CounterVec
	blocked         *prometheus.CounterVec
	remaining       *prometheus.GaugeVec
	quotaChecks     *prometheus.CounterVec
	quotaExceeded   *prometheus.CounterVec
	penaltiesApplied prometheus.Counter
	violationSeverity prometheus.Histogram
	storeErrors       *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(opts ...CollectorOption) *Collector {
	cfg := &config{
		namespace: "halt",
		registry:  prometheus.DefaultRegisterer,
		buckets:   defaultSeverityBuckets,
	}
	for _, o := range opts {
		o(cfg)
	}

	c := &Collector{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "checks_total", Help: "Total rate limit checks, partitioned by policy.",
		}, []string{"policy"}),
		allowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "allowed_total", Help: "Total allowed checks, partitioned by policy.",
		}, []string{"policy"}),
		blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "blocked_total", Help: "Total blocked checks, partitioned by policy.",
		}, []string{"policy"}),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "remaining", Help: "Remaining allowance observed on the last check for a key.",
		}, []string{"policy", "key"}),
		quotaChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "quota_checks_total", Help: "Total quota checks, partitioned by quota and decision.",
		}, []string{"quota", "decision"}),
		quotaExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "quota_exceeded_total", Help: "Total quota-exceeded events, partitioned by quota.",
		}, []string{"quota"}),
		penaltiesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "penalties_applied_total", Help: "Total times a penalty window engaged.",
		}),
		violationSeverity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "violation_severity", Help: "Severity of recorded violations.",
			Buckets: cfg.buckets,
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace, Subsystem: cfg.subsystem,
			Name: "store_errors_total", Help: "Total store failures recovered via the policy's fail-open/fail-closed fallback, partitioned by policy.",
		}, []string{"policy"}),
	}

	cfg.registry.MustRegister(
		c.checks, c.allowed, c.blocked, c.remaining,
		c.quotaChecks, c.quotaExceeded, c.penaltiesApplied, c.violationSeverity,
		c.storeErrors,
	)
	return c
}

func (c *Collector) OnCheck(policy, key string) {
	c.checks.WithLabelValues(policy).Inc()
}

func (c *Collector) OnAllowed(policy, key string, remaining int64) {
	c.allowed.WithLabelValues(policy).Inc()
	c.remaining.WithLabelValues(policy, key).Set(float64(remaining))
}

func (c *Collector) OnBlocked(policy, key string, retryAfter int64) {
	c.blocked.WithLabelValues(policy).Inc()
	c.remaining.WithLabelValues(policy, key).Set(0)
}

func (c *Collector) OnQuotaCheck(quota, identifier string, allowed bool, remaining int64) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	c.quotaChecks.WithLabelValues(quota, decision).Inc()
}

func (c *Collector) OnQuotaExceeded(quota, identifier string) {
	c.quotaExceeded.WithLabelValues(quota).Inc()
}

func (c *Collector) OnPenaltyApplied(identifier string, until int64) {
	c.penaltiesApplied.Inc()
}

func (c *Collector) OnViolation(identifier string, score float64) {
	c.violationSeverity.Observe(score)
}

func (c *Collector) OnStoreError(policy, key string, err error) {
	c.storeErrors.WithLabelValues(policy).Inc()
}

var _ telemetry.Observer = (*Collector)(nil)
