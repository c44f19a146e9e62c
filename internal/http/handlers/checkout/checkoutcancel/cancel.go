// Package checkoutcancel отменяет попытку оформления или сбрасывает
// завершенную попытку в idle.
package checkoutcancel

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
)

// Service отменяет попытку.
type Service interface {
	Cancel(ownerKey string) error
}

// Handler обрабатывает DELETE /checkout.
type Handler struct {
	log     *slog.Logger
	service Service
	urls    checkout.URLs
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, urls checkout.URLs) *Handler {
	return &Handler{log: log, service: service, urls: urls}
}

// ServeHTTP отменяет попытку. Повторная отмена не ошибка.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	owner := middlewarectx.OwnerFromRequest(r)
	if owner.Key != "" {
		if err := h.service.Cancel(owner.Key); err != nil && !errors.Is(err, checkout.ErrNoCheckout) {
			log.Error("failed to cancel checkout", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
	}
	render.JSON(w, r, response.StatusOKWithData(checkout.Present(nil, h.urls)))
}
