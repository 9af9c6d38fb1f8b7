package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Resolution metrics
	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	callsResolved   *prometheus.CounterVec
	callsSkipped    prometheus.Counter
	callsPurged     prometheus.Counter
	ledgerConflicts prometheus.Counter
	oracleRequests  *prometheus.CounterVec
	accuracy        *prometheus.GaugeVec
	streak          *prometheus.GaugeVec
	pendingCalls    prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_cycles_total",
			Help: "Total number of resolution cycles by result",
		},
		[]string{"status"},
	)
	r.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verdict_cycle_duration_seconds",
			Help:    "Resolution cycle duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	r.callsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_calls_resolved_total",
			Help: "Total number of calls resolved",
		},
		[]string{"policy", "outcome"},
	)
	r.callsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verdict_calls_skipped_total",
			Help: "Total number of malformed calls skipped",
		},
	)
	r.callsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verdict_calls_purged_total",
			Help: "Total number of calls dropped by retention",
		},
	)
	r.ledgerConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verdict_ledger_conflicts_total",
			Help: "Total number of ledger version conflicts",
		},
	)
	r.oracleRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verdict_oracle_requests_total",
			Help: "Total number of price source requests",
		},
		[]string{"source", "kind", "status"},
	)
	r.accuracy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verdict_accuracy_percent",
			Help: "Call accuracy in percent by window",
		},
		[]string{"window"},
	)
	r.streak = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verdict_streak",
			Help: "Correct call streak length",
		},
		[]string{"kind"},
	)
	r.pendingCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "verdict_pending_calls",
			Help: "Number of calls awaiting a verdict",
		},
	)

	reg.MustRegister(r.cyclesTotal)
	reg.MustRegister(r.cycleDuration)
	reg.MustRegister(r.callsResolved)
	reg.MustRegister(r.callsSkipped)
	reg.MustRegister(r.callsPurged)
	reg.MustRegister(r.ledgerConflicts)
	reg.MustRegister(r.oracleRequests)
	reg.MustRegister(r.accuracy)
	reg.MustRegister(r.streak)
	reg.MustRegister(r.pendingCalls)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordCycle records a finished resolution cycle.
func (r *Registry) RecordCycle(status string, duration float64) {
	r.cyclesTotal.WithLabelValues(status).Inc()
	r.cycleDuration.Observe(duration)
}

// RecordResolved records one resolved call.
func (r *Registry) RecordResolved(policy string, correct bool) {
	outcome := "incorrect"
	if correct {
		outcome = "correct"
	}
	r.callsResolved.WithLabelValues(policy, outcome).Inc()
}

// RecordSkipped adds malformed calls skipped during a cycle.
func (r *Registry) RecordSkipped(n int) {
	r.callsSkipped.Add(float64(n))
}

// RecordPurged adds calls dropped by retention.
func (r *Registry) RecordPurged(n int) {
	r.callsPurged.Add(float64(n))
}

// RecordConflict records a ledger version conflict.
func (r *Registry) RecordConflict() {
	r.ledgerConflicts.Inc()
}

// ObserveOracleRequest records one price source request.
func (r *Registry) ObserveOracleRequest(source, kind, status string) {
	r.oracleRequests.WithLabelValues(source, kind, status).Inc()
}

// SetStats publishes the latest statistics snapshot.
func (r *Registry) SetStats(acc7d, acc30d, accAll float64, streakCurrent, streakBest, pending int) {
	r.accuracy.WithLabelValues("7d").Set(acc7d)
	r.accuracy.WithLabelValues("30d").Set(acc30d)
	r.accuracy.WithLabelValues("all").Set(accAll)
	r.streak.WithLabelValues("current").Set(float64(streakCurrent))
	r.streak.WithLabelValues("best").Set(float64(streakBest))
	r.pendingCalls.Set(float64(pending))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
