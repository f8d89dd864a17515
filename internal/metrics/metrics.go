// Package metrics собирает метрики Prometheus сервиса подписок.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector реализует метрики сервиса подписок и HTTP-слоя.
type Collector struct {
	created       *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
	gatewayErrors *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewCollector создаёт Collector и регистрирует метрики в reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextgig_subscriptions_created_total",
			Help: "Subscriptions created, by initial status.",
		}, []string{"status"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextgig_subscription_cancellations_total",
			Help: "Subscription cancellations, by gateway outcome.",
		}, []string{"gateway"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextgig_webhook_events_total",
			Help: "Payment gateway webhook events, by type and result.",
		}, []string{"type", "result"}),
		gatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextgig_gateway_errors_total",
			Help: "Payment gateway call failures, by operation.",
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextgig_http_requests_total",
			Help: "HTTP requests, by route and status code.",
		}, []string{"route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nextgig_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.created,
		c.cancellations,
		c.webhooks,
		c.gatewayErrors,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordSubscriptionCreated учитывает созданную подписку.
func (c *Collector) RecordSubscriptionCreated(status string) {
	c.created.WithLabelValues(status).Inc()
}

// RecordCancellation учитывает отмену; gatewayFailed означает локальную отмену после ошибки шлюза.
func (c *Collector) RecordCancellation(gatewayFailed bool) {
	label := "ok"
	if gatewayFailed {
		label = "failed"
	}
	c.cancellations.WithLabelValues(label).Inc()
}

// RecordWebhookEvent учитывает событие вебхука.
func (c *Collector) RecordWebhookEvent(eventType, result string) {
	c.webhooks.WithLabelValues(eventType, result).Inc()
}

// RecordGatewayError учитывает ошибку вызова шлюза.
func (c *Collector) RecordGatewayError(op string) {
	c.gatewayErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest учитывает HTTP-запрос.
func (c *Collector) RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler возвращает HTTP-обработчик для сбора метрик Prometheus.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
