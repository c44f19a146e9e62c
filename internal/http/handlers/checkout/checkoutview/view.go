// Package checkoutview отдает текущее состояние попытки оформления.
package checkoutview

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
)

// Service возвращает попытку владельца.
type Service interface {
	Session(ownerKey string) (*models.CheckoutSession, bool)
}

// Handler обрабатывает GET /checkout.
type Handler struct {
	log     *slog.Logger
	service Service
	urls    checkout.URLs
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, urls checkout.URLs) *Handler {
	return &Handler{log: log, service: service, urls: urls}
}

// ServeHTTP отдает View текущей попытки. Без попытки состояние idle.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var session *models.CheckoutSession
	if owner := middlewarectx.OwnerFromRequest(r); owner.Key != "" {
		session, _ = h.service.Session(owner.Key)
	}
	render.JSON(w, r, response.StatusOKWithData(checkout.Present(session, h.urls)))
}
