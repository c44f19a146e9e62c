// Package checkoutstart обрабатывает начало оформления покупки: открывает
// окно оплаты для выбранного уровня и периода.
package checkoutstart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/catalog"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
)

// Request тело запроса на начало оформления.
type Request struct {
	Tier     string `json:"tier" validate:"required,oneof=basic plus ultra"`
	Duration string `json:"duration" validate:"required,oneof=day week month"`
}

// Result ответ с состоянием попытки и окном оплаты.
type Result struct {
	Checkout checkout.View          `json:"checkout"`
	Popup    *paymentprovider.Popup `json:"popup,omitempty"`
}

// Service начинает оформление.
type Service interface {
	Begin(ctx context.Context, owner checkout.Owner, tier models.Tier, duration models.Duration) (*models.CheckoutSession, *paymentprovider.Popup, error)
}

// Handler обрабатывает POST /checkout.
type Handler struct {
	log      *slog.Logger
	service  Service
	urls     checkout.URLs
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, urls checkout.URLs) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		urls:     urls,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Начать оформление
// @Description Открывает окно оплаты FastSpring для уровня и периода
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body Request true "Уровень и период"
// @Success 200 {object} Result
// @Failure 401 {object} response.ErrorResponse "Нужен вход"
// @Failure 409 {object} response.ErrorResponse "Оформление уже идет"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Платежная система недоступна"
// @Router /checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.start"
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
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	owner := middlewarectx.OwnerFromRequest(r)
	session, popup, err := h.service.Begin(r.Context(), owner, models.Tier(req.Tier), models.Duration(req.Duration))
	if session != nil && session.Guest {
		w.Header().Set(middlewarectx.HeaderCheckoutSession, session.ID)
	}

	var perr *checkout.PaymentError
	switch {
	case err == nil:
	case errors.Is(err, checkout.ErrUnauthenticated):
		log.Info("anonymous checkout rejected")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.ErrorWithData("sign in to purchase a plan", map[string]string{"redirect_url": h.urls.SignIn}))
		return
	case errors.Is(err, checkout.ErrCheckoutInProgress), errors.Is(err, checkout.ErrCanceled):
		log.Info("checkout not started", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case errors.Is(err, catalog.ErrUnknownProduct):
		log.Warn("unknown product", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("product is not available"))
		return
	case errors.As(err, &perr):
		status := http.StatusServiceUnavailable
		if perr.Kind == models.ErrorKindUnknown {
			status = http.StatusBadGateway
		}
		w.WriteHeader(status)
		render.JSON(w, r, response.ErrorWithData(checkout.MessageFor(perr.Kind), Result{Checkout: checkout.Present(session, h.urls)}))
		return
	default:
		log.Error("failed to begin checkout", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("checkout started", slog.String("session_id", session.ID), slog.String("tier", req.Tier))
	render.JSON(w, r, response.StatusOKWithData(Result{
		Checkout: checkout.Present(session, h.urls),
		Popup:    popup,
	}))
}
