// Package checkoutclosed принимает событие закрытия окна оплаты.
package checkoutclosed

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
)

// Request тело колбэка. reference равен null, если пользователь закрыл окно без оплаты.
type Request struct {
	Reference *string `json:"reference"`
}

// Dispatcher передает закрытие окна попытке владельца.
type Dispatcher interface {
	PopupClosed(owner string, reference *string) error
}

// Sessions возвращает попытку владельца.
type Sessions interface {
	Session(ownerKey string) (*models.CheckoutSession, bool)
}

// Handler обрабатывает POST /checkout/closed.
type Handler struct {
	log        *slog.Logger
	dispatcher Dispatcher
	sessions   Sessions
	urls       checkout.URLs
}

// New создает новый Handler.
func New(log *slog.Logger, dispatcher Dispatcher, sessions Sessions, urls checkout.URLs) *Handler {
	return &Handler{log: log, dispatcher: dispatcher, sessions: sessions, urls: urls}
}

// ServeHTTP godoc
// @Summary Окно оплаты закрыто
// @Description reference=null отменяет попытку, иначе начинается ожидание активации
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body Request true "Номер заказа или null"
// @Success 200 {object} checkout.View
// @Failure 404 {object} response.ErrorResponse "Нет попытки оформления"
// @Router /checkout/closed [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.closed"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	owner := middlewarectx.OwnerFromRequest(r)
	if owner.Key == "" {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error(checkout.ErrNoCheckout.Error()))
		return
	}

	if err := h.dispatcher.PopupClosed(owner.Key, req.Reference); err != nil {
		if errors.Is(err, checkout.ErrNoCheckout) {
			log.Info("popup closed without checkout", slog.String("owner", owner.Key))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to dispatch popup close", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	session, _ := h.sessions.Session(owner.Key)
	render.JSON(w, r, response.StatusOKWithData(checkout.Present(session, h.urls)))
}
