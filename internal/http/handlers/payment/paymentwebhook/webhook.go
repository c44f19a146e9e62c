// Package paymentwebhook принимает webhook платежной системы с событиями заказов.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/metrics"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
)

const (
	// HeaderSignature заголовок с подписью тела.
	HeaderSignature = "X-FS-Signature"
	// EventOrderCompleted событие оплаченного заказа.
	EventOrderCompleted = "order.completed"
)

// Service сохраняет заказ.
type Service interface {
	RecordVerified(ctx context.Context, owner string, data paymentprovider.OrderData) (*models.Order, error)
}

// Handler обрабатывает POST /webhooks/payment.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !paymentprovider.VerifySignature(h.webhookSecret, body, r.Header.Get(HeaderSignature)) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload paymentprovider.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, ev := range payload.Events {
		metrics.WebhookEvents.WithLabelValues(ev.Type).Inc()
		if ev.Type != EventOrderCompleted {
			log.Info("ignored webhook event", slog.String("event", ev.Type), slog.String("event_id", ev.ID))
			continue
		}

		var owner string
		if uid := ev.Data.UserUID(); uid != "" {
			owner = checkout.UserOwner(uid, "").Key
		}
		if _, err := h.service.RecordVerified(r.Context(), owner, ev.Data); err != nil {
			log.Error("failed to process webhook event", slog.String("event_id", ev.ID), sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		log.Info("order completed", slog.String("reference", ev.Data.Reference))
	}

	w.WriteHeader(http.StatusOK)
}
