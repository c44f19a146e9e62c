// Package checkoutdata принимает данные заказа из колбэка окна оплаты.
package checkoutdata

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
)

// Service сохраняет заказ и передает его попытке владельца.
type Service interface {
	RecordCallback(ctx context.Context, owner string, data paymentprovider.OrderData) (*models.Order, error)
}

// Sessions отдает текущую попытку владельца.
type Sessions interface {
	Session(ownerKey string) (*models.CheckoutSession, bool)
}

// Handler обрабатывает POST /checkout/data.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Sessions
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, sessions Sessions) *Handler {
	return &Handler{log: log, service: service, sessions: sessions, validate: validator.New()}
}

// ServeHTTP сохраняет данные заказа.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.data"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var data paymentprovider.OrderData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(data); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	owner := middlewarectx.OwnerFromRequest(r)
	if owner.Key == "" {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no checkout in progress"))
		return
	}
	if session, ok := h.sessions.Session(owner.Key); !ok || !session.State.Live() {
		log.Warn("order data without live checkout", slog.String("owner", owner.Key))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no checkout in progress"))
		return
	}

	// теги от клиента не доверенные: user_id берется только из токена
	data.Tags = nil
	if owner.Authenticated() {
		data.Tags = map[string]string{paymentprovider.TagUserID: owner.UserUID}
		if data.Customer.Email == "" {
			data.Customer.Email = owner.Email
		}
	}

	order, err := h.service.RecordCallback(r.Context(), owner.Key, data)
	if err != nil {
		log.Error("failed to record order", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not record order"))
		return
	}

	log.Info("order data received", slog.String("reference", order.Reference))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"order": order,
	}))
}
