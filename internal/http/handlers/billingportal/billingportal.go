// Package billingportal отдает адрес портала управления оплатой.
package billingportal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
)

// Handler обрабатывает GET /billing/portal.
type Handler struct {
	log *slog.Logger
	url string
}

// New создает новый Handler.
func New(log *slog.Logger, url string) *Handler {
	return &Handler{log: log, url: url}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.url == "" {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("billing portal is not configured"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"url": h.url}))
}
