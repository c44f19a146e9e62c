// Package pricing отдает таблицу тарифов для страницы цен.
package pricing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/catalog"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/response"
)

// Catalog источник продуктов.
type Catalog interface {
	List() []catalog.Product
}

// Handler обрабатывает GET /pricing.
type Handler struct {
	log     *slog.Logger
	catalog Catalog
}

// New создает новый Handler.
func New(log *slog.Logger, c Catalog) *Handler {
	return &Handler{log: log, catalog: c}
}

// ServeHTTP godoc
// @Summary Тарифы
// @Description Уровни, периоды и цены, доступные для покупки
// @Tags Pricing
// @Produce  json
// @Success 200 {array} catalog.Product
// @Router /pricing [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.List()
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(products),
		"products":   products,
	}))
}
