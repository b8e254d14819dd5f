package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	APIErrors       *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easyparcel_requests_total",
				Help: "Total number of EasyParcel API calls by action and outcome",
			},
			[]string{"action", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "easyparcel_request_duration_seconds",
				Help:    "EasyParcel API call duration in seconds by action",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		APIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easyparcel_api_errors_total",
				Help: "Total error codes returned by the EasyParcel API",
			},
			[]string{"action", "error_code"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(action, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(action, status).Inc()
	m.RequestDuration.WithLabelValues(action).Observe(duration)
}

// RecordError records an API error code.
func (m *Metrics) RecordError(action, errorCode string) {
	m.APIErrors.WithLabelValues(action, errorCode).Inc()
}
