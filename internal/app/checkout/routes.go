package checkout

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/catalog"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/billingportal"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/checkout/checkoutcancel"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/checkout/checkoutclosed"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/checkout/checkoutdata"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/checkout/checkoutstart"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/checkout/checkoutview"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/health"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/order/orderget"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/order/orderlist"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/pricing"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/subscriptionstatus"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/middlewarectx"
	checkoutservice "github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/orders"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/subscription"
)

// Services зависимости обработчиков.
type Services struct {
	Manager      *checkoutservice.Manager
	Orders       *orders.Service
	Subscription *subscription.Service
	Catalog      *catalog.Catalog
	Tokens       middlewarectx.TokenParser
	Health       map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	urls := checkoutservice.URLs{SignIn: cfg.URLs.SignIn, Studio: cfg.URLs.Studio}

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/pricing", pricing.New(logger, s.Catalog).ServeHTTP)
		r.Get("/billing/portal", billingportal.New(logger, cfg.URLs.BillingPortal).ServeHTTP)

		// Checkout доступен гостям, если это разрешено конфигом
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalJWT(s.Tokens, cfg.URLs.SignIn, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))
			r.Post("/checkout", checkoutstart.New(logger, s.Manager, urls).ServeHTTP)
			r.Get("/checkout", checkoutview.New(logger, s.Manager, urls).ServeHTTP)
			r.Delete("/checkout", checkoutcancel.New(logger, s.Manager, urls).ServeHTTP)
			r.Post("/checkout/closed", checkoutclosed.New(logger, s.Manager.Registry(), s.Manager, urls).ServeHTTP)
			r.Post("/checkout/data", checkoutdata.New(logger, s.Orders, s.Manager).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireJWT(s.Tokens, cfg.URLs.SignIn, logger))
			r.Get("/subscription", subscriptionstatus.New(logger, s.Subscription).ServeHTTP)
			r.Get("/orders", orderlist.New(logger, s.Orders).ServeHTTP)
			r.Get("/orders/{reference}", orderget.New(logger, s.Orders).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, проверяется подпись)
		r.Post("/webhooks/payment", paymentwebhook.New(logger, s.Orders, cfg.FastSpring.WebhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger, s.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
