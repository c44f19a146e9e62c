// Package metrics содержит prometheus-метрики checkout-сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutStarted число открытых checkout-окон по уровню и периоду.
	CheckoutStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curvecoach",
		Subsystem: "checkout",
		Name:      "started_total",
		Help:      "Checkout popups opened.",
	}, []string{"tier", "duration"})

	// CheckoutFailed число попыток, завершившихся ошибкой, по типу ошибки.
	CheckoutFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curvecoach",
		Subsystem: "checkout",
		Name:      "failed_total",
		Help:      "Checkout attempts that ended with an error.",
	}, []string{"kind"})

	// PollRequests число запросов статуса подписки по результату.
	PollRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curvecoach",
		Subsystem: "activation",
		Name:      "poll_requests_total",
		Help:      "Subscription status requests made while waiting for activation.",
	}, []string{"result"})

	// ActivationOutcome итог ожидания активации.
	ActivationOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curvecoach",
		Subsystem: "activation",
		Name:      "outcome_total",
		Help:      "Activation polling outcomes.",
	}, []string{"outcome"})

	// ActivationAttempts число попыток до активации.
	ActivationAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "curvecoach",
		Subsystem: "activation",
		Name:      "attempts",
		Help:      "Status requests needed before the entitlement became active.",
		Buckets:   prometheus.LinearBuckets(1, 2, 8),
	})

	// WebhookEvents число событий webhook по типу.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curvecoach",
		Subsystem: "payments",
		Name:      "webhook_events_total",
		Help:      "Payment webhook events received.",
	}, []string{"type"})
)
