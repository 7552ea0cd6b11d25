package observability

import (
	"regexp"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var uuidPathSegment = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)

// Metrics holds the application's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	workflowTotal     *prometheus.CounterVec
	auditWrites       *prometheus.CounterVec
	invalidations     *prometheus.CounterVec
	viewRenders       *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	recurringTotal    *prometheus.CounterVec
	botRejections     *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		workflowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_invocations_total",
			Help: "Mutation workflow invocations by action and final state",
		}, []string{"action", "state"}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Audit log writes by outcome (recorded, fallback, dropped)",
		}, []string{"outcome"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "view_invalidations_total",
			Help: "View invalidation signals by path",
		}, []string{"path"}),
		viewRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "view_renders_total",
			Help: "Cached view renders by result (hit, miss)",
		}, []string{"result"}),
		inferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inference_request_duration_seconds",
			Help:    "Generative provider call duration in seconds",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 40},
		}, []string{"provider", "status"}),
		recurringTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recurring_transactions_processed_total",
			Help: "Recurring transaction occurrences by status",
		}, []string{"status"}),
		botRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_protection_rejections_total",
			Help: "Requests rejected by bot protection by reason",
		}, []string{"reason"}),
	}

	m.Registry.MustRegister(
		m.requestDuration,
		m.requestTotal,
		m.workflowTotal,
		m.auditWrites,
		m.invalidations,
		m.viewRenders,
		m.inferenceDuration,
		m.recurringTotal,
		m.botRejections,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// NormalizePath replaces UUID path segments with {id} to bound label cardinality
func NormalizePath(path string) string {
	return uuidPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request
func (m *Metrics) RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	m.requestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordWorkflow counts one workflow invocation ending in state
func (m *Metrics) RecordWorkflow(action, state string) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(action, state).Inc()
}

// RecordAuditWrite counts one audit write outcome
func (m *Metrics) RecordAuditWrite(outcome string) {
	if m == nil {
		return
	}
	m.auditWrites.WithLabelValues(outcome).Inc()
}

// RecordInvalidation counts one invalidation signal for path
func (m *Metrics) RecordInvalidation(path string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(NormalizePath(path)).Inc()
}

// RecordViewRender counts a cached view render as a hit or a miss
func (m *Metrics) RecordViewRender(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.viewRenders.WithLabelValues(result).Inc()
}

// RecordInference records a provider call
func (m *Metrics) RecordInference(provider, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.inferenceDuration.WithLabelValues(provider, status).Observe(durationSeconds)
}

// RecordRecurring counts one recurring occurrence by status
func (m *Metrics) RecordRecurring(status string) {
	if m == nil {
		return
	}
	m.recurringTotal.WithLabelValues(status).Inc()
}

// RecordBotRejection counts one request rejected by bot protection
func (m *Metrics) RecordBotRejection(reason string) {
	if m == nil {
		return
	}
	m.botRejections.WithLabelValues(reason).Inc()
}
