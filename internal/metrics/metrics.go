// Package metrics содержит метрики Prometheus сервиса магазина.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry хранит собственный реестр метрик и счётчики сервиса.
type Registry struct {
	reg *prometheus.Registry

	OrdersCreated        prometheus.Counter
	OrdersReaped         prometheus.Counter
	WebhookEvents        *prometheus.CounterVec
	PromotionValidations *prometheus.CounterVec
	NotificationsFailed  prometheus.Counter
	RateLimited          prometheus.Counter
}

// NewRegistry создаёт реестр и регистрирует в нём все метрики.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_orders_created_total"})
	ordersReaped := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_orders_reaped_total"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_webhook_events_total"}, []string{"outcome"})
	promoValidations := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_promotion_validations_total"}, []string{"result"})
	notificationsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_notifications_failed_total"})
	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_rate_limited_total"})

	r.MustRegister(ordersCreated, ordersReaped, webhookEvents, promoValidations, notificationsFailed, rateLimited)

	return &Registry{
		reg:                  r,
		OrdersCreated:        ordersCreated,
		OrdersReaped:         ordersReaped,
		WebhookEvents:        webhookEvents,
		PromotionValidations: promoValidations,
		NotificationsFailed:  notificationsFailed,
		RateLimited:          rateLimited,
	}
}

// Handler отдаёт метрики в формате Prometheus.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
