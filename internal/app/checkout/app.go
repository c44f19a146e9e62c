// Package checkout собирает HTTP-сервис оформления покупки: хранилище заказов,
// кеш статуса подписки, платежную систему и менеджер попыток оформления.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/accountapi"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/cache"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/catalog"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/health"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/migrations"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
	checkoutservice "github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/orders"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/subscription"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервис оформления покупки.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	cache   *cache.Cache
	manager *checkoutservice.Manager
	conn    *amqp.Connection
	ch      *amqp.Channel
}

// New создает App и все его зависимости.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	products, err := catalog.New(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		db.Close()
		return nil, err
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	// Без брокера события checkout не публикуются, письма не отправляются.
	var publisher checkoutservice.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			app.closeStores()
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.CheckoutQueues())
		if err != nil {
			conn.Close()
			app.closeStores()
			return nil, err
		}
		app.conn, app.ch = conn, ch
		publisher = rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange)
	} else {
		logger.Warn("rabbitmq is not configured, checkout events are not published")
	}

	accounts := accountapi.NewClient(cfg.AccountAPI)
	subscriptionService := subscription.NewService(accounts, cacheRedis, cfg.StatusTTL, logger)

	manager := checkoutservice.NewManager(checkoutservice.Deps{
		Builder:       paymentprovider.NewClient(cfg.FastSpring),
		Products:      products,
		Poller:        checkoutservice.NewPoller(accounts, cfg.Checkout, logger),
		Cache:         subscriptionService,
		Publisher:     publisher,
		AllowGuest:    cfg.Checkout.AllowGuest,
		SessionTTL:    cfg.Checkout.SessionTTL,
		SweepInterval: cfg.Checkout.SweepInterval,
	}, logger)
	app.manager = manager

	ordersService := orders.NewService(db, manager.Registry(), publisher, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, Services{
		Manager:      manager,
		Orders:       ordersService,
		Subscription: subscriptionService,
		Catalog:      products,
		Tokens:       jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Health: map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		},
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	// Поллеры публикуют события, поэтому останавливаются раньше брокера.
	a.manager.Close()
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	a.closeStores()
}

func (a *App) closeStores() {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
