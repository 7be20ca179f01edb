// Package metrics holds the Prometheus collectors for ingestion and HTTP.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service encapsulates Prometheus instrumentation. A nil *Service is a
// valid no-op recorder.
type Service struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	jobsTotal          *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	extractionDuration *prometheus.HistogramVec
	queueDepth         prometheus.Gauge
	staleJobs          prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Service {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_jobs_total",
		Help: "Ingestion jobs by document kind and terminal status",
	}, []string{"kind", "status", "error_code"})

	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestion_step_duration_seconds",
		Help:    "Time spent in each ingestion step",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"kind", "step"})

	extractionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "extraction_request_duration_seconds",
		Help:    "Latency of structured extraction requests",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 180},
	}, []string{"schema", "outcome"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingestion_queue_depth",
		Help: "Jobs waiting for a worker",
	})

	staleJobs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_stale_jobs_total",
		Help: "Processing jobs failed by the stale job reaper",
	})

	registry.MustRegister(requestDuration, jobsTotal, stepDuration, extractionDuration, queueDepth, staleJobs,
		collectors.NewGoCollector())

	return &Service{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		jobsTotal:          jobsTotal,
		stepDuration:       stepDuration,
		extractionDuration: extractionDuration,
		queueDepth:         queueDepth,
		staleJobs:          staleJobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Service) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Service) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
}

// JobFinished counts a job reaching a terminal status.
func (m *Service) JobFinished(kind, status, errorCode string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(kind, status, errorCode).Inc()
}

func (m *Service) ObserveStep(kind, step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(kind, step).Observe(duration.Seconds())
}

func (m *Service) ObserveExtraction(schema string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.extractionDuration.WithLabelValues(schema, outcome).Observe(duration.Seconds())
}

func (m *Service) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Service) StaleJobReaped() {
	if m == nil {
		return
	}
	m.staleJobs.Inc()
}
