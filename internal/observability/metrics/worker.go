package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	indexTotal      *prometheus.CounterVec
	indexDuration   *prometheus.HistogramVec
	indexInFlight   prometheus.Gauge
	indexChunks     *prometheus.HistogramVec
	queueLag        *prometheus.HistogramVec
	summaryAttempts *prometheus.CounterVec
	summaryRetries  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	indexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "index_total",
			Help:      "Total indexed documents by status.",
		},
		[]string{"service", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "index_duration_seconds",
			Help:      "Document indexing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	indexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "index_in_flight",
			Help:      "Number of in-flight indexing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	indexChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "index_chunks",
			Help:      "Distribution of chunks produced per indexed document.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	summaryAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintel",
			Subsystem: "summary",
			Name:      "attempts_total",
			Help:      "Total summary generation attempts by tier and outcome.",
		},
		[]string{"service", "tier", "outcome"},
	)
	summaryRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintel",
			Subsystem: "summary",
			Name:      "retries_total",
			Help:      "Total summary retries scheduled after failures.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		indexTotal, indexDuration, indexInFlight, indexChunks,
		queueLag, summaryAttempts, summaryRetries,
	)

	return &WorkerMetrics{
		registry:        registry,
		indexTotal:      indexTotal,
		indexDuration:   indexDuration,
		indexInFlight:   indexInFlight,
		indexChunks:     indexChunks,
		queueLag:        queueLag,
		summaryAttempts: summaryAttempts,
		summaryRetries:  summaryRetries,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartIndexing() {
	m.indexInFlight.Inc()
}

func (m *WorkerMetrics) FinishIndexing(service string, duration time.Duration, chunkCount int, err error) {
	m.indexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.indexTotal.WithLabelValues(service, status).Inc()
	m.indexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.indexChunks.WithLabelValues(service).Observe(float64(chunkCount))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordSummaryAttempt(service, tier, outcome string) {
	if tier == "" {
		tier = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.summaryAttempts.WithLabelValues(service, tier, outcome).Inc()
}

func (m *WorkerMetrics) RecordSummaryRetry(service string) {
	m.summaryRetries.WithLabelValues(service).Inc()
}
