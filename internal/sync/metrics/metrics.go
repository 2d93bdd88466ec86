// Package metrics exposes the sync engine's Prometheus instruments. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"bookingsync/pkg/model"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "booking_sync"

const (
	SkipBusy    = "busy"
	SkipOffline = "offline"

	OutcomeConfirmed = "confirmed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	passesStarted     prometheus.Counter
	passesSkipped     *prometheus.CounterVec
	passDuration      prometheus.Histogram
	intentsProcessed  *prometheus.CounterVec
	conflicts         *prometheus.CounterVec
	retriesScheduled  prometheus.Counter
	persistenceErrors prometheus.Counter
	queueDepth        *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New registers every instrument on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		passesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_passes_total",
			Help:      "Sync passes that claimed the exclusive flag.",
		}),
		passesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_passes_skipped_total",
			Help:      "Sync triggers that did not start a pass, by reason.",
		}, []string{"reason"}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sync_pass_duration_seconds",
			Help:      "Wall time of a complete sync pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		intentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "intents_processed_total",
			Help:      "Sync attempts by outcome.",
		}, []string{"outcome"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "conflicts_detected_total",
			Help:      "Conflicts acted upon, by type.",
		}, []string{"type"}),
		retriesScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retries_scheduled_total",
			Help:      "Failed attempts sent back to pending with a backoff.",
		}),
		persistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed writes of the intent queue.",
		}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "intents",
			Help:      "Queued intents by status after the last pass.",
		}, []string{"status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Control API requests.",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Control API latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registerer lets other packages (the Kafka middlewares) add their
// instruments to the same registry.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) PassSkipped(reason string) {
	if m == nil {
		return
	}
	m.passesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) PassStarted() {
	if m == nil {
		return
	}
	m.passesStarted.Inc()
}

func (m *Metrics) PassFinished(start time.Time) {
	if m == nil {
		return
	}
	m.passDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IntentProcessed(outcome string) {
	if m == nil {
		return
	}
	m.intentsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ConflictDetected(conflictType model.ConflictType) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(string(conflictType)).Inc()
}

func (m *Metrics) RetryScheduled() {
	if m == nil {
		return
	}
	m.retriesScheduled.Inc()
}

// PersistenceError has the signature of the store's persistence hook.
func (m *Metrics) PersistenceError(error) {
	if m == nil {
		return
	}
	m.persistenceErrors.Inc()
}

func (m *Metrics) SetQueueDepth(counts map[model.IntentStatus]int) {
	if m == nil {
		return
	}
	for _, status := range []model.IntentStatus{model.StatusPending, model.StatusSyncing, model.StatusConfirmed, model.StatusFailed} {
		m.queueDepth.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// InstrumentRoute records count and latency of one route, labelled by its
// pattern rather than the concrete path.
func (m *Metrics) InstrumentRoute(method, route string, next httprouter.Handle) httprouter.Handle {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		timer := prometheus.NewTimer(m.httpLatency.WithLabelValues(method, route))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r, ps)
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
	}
}
