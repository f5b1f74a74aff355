// Package metrics exposes Prometheus collectors for the calibration service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a dedicated registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	predictions      *prometheus.CounterVec
	predictionErrors *prometheus.CounterVec
	batchSize        prometheus.Histogram
	predictDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calibration_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"path", "method", "status"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calibration_predictions_total",
			Help: "Records calibrated per pollutant model.",
		}, []string{"pollutant"}),
		predictionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calibration_prediction_errors_total",
			Help: "Rejected or failed prediction requests by error kind.",
		}, []string{"kind"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "calibration_batch_size",
			Help:    "Records per accepted prediction request.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		predictDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calibration_prediction_duration_seconds",
			Help:    "Time spent in one model Predict call.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"pollutant"}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.predictions,
		m.predictionErrors,
		m.batchSize,
		m.predictDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(path, method string, status int) {
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveBatch(size int) {
	m.batchSize.Observe(float64(size))
}

func (m *Metrics) ObservePrediction(pollutant string, records int, d time.Duration) {
	m.predictions.WithLabelValues(pollutant).Add(float64(records))
	m.predictDuration.WithLabelValues(pollutant).Observe(d.Seconds())
}

// ObserveError counts a failed request; kind is "input", "feature" or "model".
func (m *Metrics) ObserveError(kind string) {
	m.predictionErrors.WithLabelValues(kind).Inc()
}
