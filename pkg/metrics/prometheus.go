package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects remote call and workflow metrics with Prometheus.
type Recorder struct {
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	runsInFlight  prometheus.Gauge
	staleDiscards prometheus.Counter
	cacheLookups  *prometheus.CounterVec
	keepAlive     *prometheus.CounterVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		remoteCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratview_remote_calls_total",
				Help: "Remote backtest service calls by endpoint and classified outcome",
			},
			[]string{"endpoint", "kind"},
		),
		remoteLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratview_remote_call_duration_seconds",
				Help:    "Duration of remote backtest service calls",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			},
			[]string{"endpoint"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratview_runs_total",
				Help: "Workflow runs by variant and terminal phase",
			},
			[]string{"variant", "phase", "kind"},
		),
		runsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "stratview_runs_in_flight",
				Help: "Runs currently executing, including superseded ones not yet returned",
			},
		),
		staleDiscards: f.NewCounter(
			prometheus.CounterOpts{
				Name: "stratview_stale_completions_total",
				Help: "Completions discarded because a newer run had started",
			},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratview_cache_lookups_total",
				Help: "Benchmark cache lookups by result",
			},
			[]string{"result"},
		),
		keepAlive: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratview_keepalive_pings_total",
				Help: "Keep-alive pings by result",
			},
			[]string{"result"},
		),
	}
}

// RecordRemoteCall records one classified remote call.
func (r *Recorder) RecordRemoteCall(endpoint, kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.remoteCalls.WithLabelValues(endpoint, kind).Inc()
	r.remoteLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RunStarted marks a run as executing.
func (r *Recorder) RunStarted() {
	if r == nil {
		return
	}
	r.runsInFlight.Inc()
}

// RunFinished records a run's terminal phase. kind is empty on success.
func (r *Recorder) RunFinished(variant, phase, kind string) {
	if r == nil {
		return
	}
	r.runsInFlight.Dec()
	r.runs.WithLabelValues(variant, phase, kind).Inc()
}

// RecordRejected records a run that failed input validation and never started.
func (r *Recorder) RecordRejected(variant string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(variant, "failed", "InvalidRequest").Inc()
}

// RecordStaleDiscard counts a completion dropped by last-run-wins.
func (r *Recorder) RecordStaleDiscard() {
	if r == nil {
		return
	}
	r.staleDiscards.Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordKeepAlive records a keep-alive ping result ("ok" or "error").
func (r *Recorder) RecordKeepAlive(result string) {
	if r == nil {
		return
	}
	r.keepAlive.WithLabelValues(result).Inc()
}
