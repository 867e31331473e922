// Package metrics содержит метрики Prometheus витрины samshop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "samshop"

// ServerMetrics собирает метрики HTTP-запросов и сверки платежей.
type ServerMetrics struct {
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	WebhookOutcomes *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewServerMetrics создаёт метрики и регистрирует их в reg.
// Если reg равен nil, используется отдельный реестр.
func NewServerMetrics(reg *prometheus.Registry) *ServerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_outcomes_total",
		Help:      "Payment webhook deliveries by reconciliation outcome.",
	}, []string{"outcome"})

	reg.MustRegister(requests, latency, outcomes)

	return &ServerMetrics{
		Requests:        requests,
		LatencyMS:       latency,
		WebhookOutcomes: outcomes,
		gatherer:        reg,
	}
}

// ObserveWebhook учитывает результат обработки уведомления.
func (m *ServerMetrics) ObserveWebhook(outcome string) {
	m.WebhookOutcomes.WithLabelValues(outcome).Inc()
}

// Handler отдаёт метрики в формате Prometheus.
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
