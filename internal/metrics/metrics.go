// Package metrics exposes Prometheus gauges/counters for the scheduler's
// per-job health, ingestor pull outcomes, cache hit ratio, and alert
// emission — grounded on the teacher's internal/interfaces/http MetricsRegistry
// (client_golang HistogramVec/CounterVec/GaugeVec, MustRegister at
// construction, a StepTimer helper), generalized from pipeline-step/regime
// metrics to this system's job/producer/cache concerns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// Registry holds every metric this system exports.
type Registry struct {
	JobDuration    *prometheus.HistogramVec
	JobRuns        *prometheus.CounterVec
	JobLastSuccess *prometheus.GaugeVec
	JobStreak      *prometheus.GaugeVec

	IngestRows  *prometheus.CounterVec
	IngestFails *prometheus.CounterVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	AlertsEmitted *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	CircuitBreakerState *prometheus.GaugeVec
}

// New builds and registers every metric. Call once per process; a second
// call against the default registerer would panic on duplicate
// registration, same as the teacher's prometheus.MustRegister pattern.
func New() *Registry {
	r := &Registry{
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confluence_job_duration_seconds",
				Help:    "Duration of each scheduled job run",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"job", "result"},
		),
		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "confluence_job_runs_total", Help: "Total scheduled job runs by result"},
			[]string{"job", "result"},
		),
		JobLastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "confluence_job_last_success_unixtime", Help: "Unix timestamp of a job's last successful run"},
			[]string{"job"},
		),
		JobStreak: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "confluence_job_consecutive_failures", Help: "Current consecutive-failure streak for a job"},
			[]string{"job"},
		),
		IngestRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "confluence_ingest_rows_total", Help: "Rows written by each ingestor"},
			[]string{"source"},
		),
		IngestFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "confluence_ingest_failures_total", Help: "Failed pulls by each ingestor"},
			[]string{"source"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "confluence_cache_hits_total", Help: "Cache hits by cache key prefix"},
			[]string{"cache"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "confluence_cache_misses_total", Help: "Cache misses by cache key prefix"},
			[]string{"cache"},
		),
		AlertsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "confluence_alerts_emitted_total", Help: "Alerts emitted by kind and severity"},
			[]string{"kind", "severity"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "confluence_http_requests_total", Help: "HTTP requests by route and status"},
			[]string{"route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confluence_http_duration_seconds",
				Help:    "HTTP handler duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"route"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "confluence_breaker_state", Help: "Circuit breaker state (0=closed,1=half-open,2=open)"},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		r.JobDuration, r.JobRuns, r.JobLastSuccess, r.JobStreak,
		r.IngestRows, r.IngestFails,
		r.CacheHits, r.CacheMisses,
		r.AlertsEmitted,
		r.HTTPRequests, r.HTTPDuration,
		r.CircuitBreakerState,
	)
	return r
}

// JobTimer tracks one job run's wall-clock duration.
type JobTimer struct {
	registry *Registry
	job      string
	start    time.Time
}

func (r *Registry) StartJob(job string) *JobTimer {
	return &JobTimer{registry: r, job: job, start: time.Now()}
}

// Stop records the run's duration/count and updates the per-job health
// gauges: the last-success timestamp and the consecutive-failure streak.
// There is no last-failure timestamp gauge; failures are only counted in
// JobRuns under result="failure".
func (t *JobTimer) Stop(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	elapsed := time.Since(t.start)
	t.registry.JobDuration.WithLabelValues(t.job, result).Observe(elapsed.Seconds())
	t.registry.JobRuns.WithLabelValues(t.job, result).Inc()

	if success {
		t.registry.JobLastSuccess.WithLabelValues(t.job).Set(float64(time.Now().Unix()))
		t.registry.JobStreak.WithLabelValues(t.job).Set(0)
	} else {
		t.registry.JobStreak.WithLabelValues(t.job).Inc()
	}
}

func (r *Registry) RecordIngest(source string, rows int, err error) {
	if err != nil {
		r.IngestFails.WithLabelValues(source).Inc()
		return
	}
	r.IngestRows.WithLabelValues(source).Add(float64(rows))
}

func (r *Registry) RecordCacheHit(cache string)  { r.CacheHits.WithLabelValues(cache).Inc() }
func (r *Registry) RecordCacheMiss(cache string) { r.CacheMisses.WithLabelValues(cache).Inc() }

func (r *Registry) RecordAlert(kind, severity string) {
	r.AlertsEmitted.WithLabelValues(kind, severity).Inc()
}

func (r *Registry) RecordHTTP(route, status string, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(route, status).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SetBreakerState records a circuit breaker's current state as a 0/1/2 gauge.
func (r *Registry) SetBreakerState(name string, state float64) {
	r.CircuitBreakerState.WithLabelValues(name).Set(state)
}

// cacheHitRatio reads back the counter values the way the teacher's
// updateCacheHitRatio does, via the client_model Metric.Write hook, rather
// than tracking a separate running ratio that could drift from the counters.
func cacheHitRatio(hits, misses *prometheus.CounterVec, cacheType string) float64 {
	var hitMetric, missMetric io_prometheus_client.Metric
	total := 0.0
	if c, err := hits.GetMetricWithLabelValues(cacheType); err == nil {
		if err := c.Write(&hitMetric); err == nil {
			total += hitMetric.GetCounter().GetValue()
		}
	}
	hitCount := total
	if c, err := misses.GetMetricWithLabelValues(cacheType); err == nil {
		if err := c.Write(&missMetric); err == nil {
			total += missMetric.GetCounter().GetValue()
		}
	}
	if total == 0 {
		return 0
	}
	return hitCount / total
}

// CacheHitRatio returns the observed hit ratio for one cache key prefix.
func (r *Registry) CacheHitRatio(cacheType string) float64 {
	return cacheHitRatio(r.CacheHits, r.CacheMisses, cacheType)
}
