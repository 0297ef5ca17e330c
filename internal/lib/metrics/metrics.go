// Package metrics объявляет метрики Prometheus портала.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal число HTTP-запросов
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robolike_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration длительность обработки запросов
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "robolike_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// MagicLinksIssued выданные ссылки входа
	MagicLinksIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "robolike_magic_links_issued_total",
			Help: "Total number of magic links sent",
		},
	)

	// MagicLinksConfirmed подтверждения ссылок по результату
	MagicLinksConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robolike_magic_links_confirmed_total",
			Help: "Magic link confirmations by result",
		},
		[]string{"result"},
	)

	// WebhookEvents события платёжной системы по типу и результату
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robolike_billing_webhook_events_total",
			Help: "Billing webhook events by type and result",
		},
		[]string{"type", "result"},
	)

	// BillingActions действия со страницы оплаты
	BillingActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robolike_billing_actions_total",
			Help: "Billing actions by action and result",
		},
		[]string{"action", "result"},
	)

	// AnalyticsEventsConsumed события, сохранённые потребителем
	AnalyticsEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robolike_analytics_events_consumed_total",
			Help: "Analytics events processed by the consumer",
		},
		[]string{"result"},
	)
)

// Значения метки result.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultInvalid = "invalid"
	ResultIgnored = "ignored"
)
