// Package metrics records pipeline, cache and HTTP limiter activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives measurements from the pipeline, the service and the server
type Recorder interface {
	// ObserveStage records one pipeline stage run and its outcome
	ObserveStage(stage string, d time.Duration, err error)
	// CacheLookup records an insight cache hit or miss
	CacheLookup(hit bool)
	// RateLimited records a rejected request for a route
	RateLimited(route string)
}

// Nop discards all measurements
type Nop struct{}

func (Nop) ObserveStage(string, time.Duration, error) {}
func (Nop) CacheLookup(bool)                          {}
func (Nop) RateLimited(string)                        {}

// Prometheus implements Recorder with Prometheus collectors
type Prometheus struct {
	stageDuration *prometheus.HistogramVec
	stageTotal    *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
}

// NewPrometheus registers the collectors with reg
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "receipt_pipeline_stage_duration_seconds",
				Help:    "Duration of extraction pipeline stages",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"stage"},
		),
		stageTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_pipeline_stage_total",
				Help: "Extraction pipeline stage runs by outcome",
			},
			[]string{"stage", "status"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_insight_cache_lookups_total",
				Help: "Insight cache lookups by result",
			},
			[]string{"result"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "receipt_http_rate_limited_total",
				Help: "Requests rejected by the LLM endpoint limiter",
			},
			[]string{"route"},
		),
	}
}

func (p *Prometheus) ObserveStage(stage string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	p.stageTotal.WithLabelValues(stage, status).Inc()
}

func (p *Prometheus) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *Prometheus) RateLimited(route string) {
	p.rateLimited.WithLabelValues(route).Inc()
}
