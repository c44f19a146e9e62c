package checkout

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/cache"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/catalog"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/handlers/health"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/jwt"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
	checkoutservice "github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/orders"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/subscription"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/storage/repository"
)

type stubBuilder struct{}

func (stubBuilder) Ready() error { return nil }

func (stubBuilder) Push(_ context.Context, cfg paymentprovider.PushConfig) (*paymentprovider.Popup, error) {
	return &paymentprovider.Popup{SessionID: "fs-" + cfg.Products[0].Path, URL: "https://example.test/popup"}, nil
}

type stubFetcher struct{}

func (stubFetcher) FetchStatus(_ context.Context, _ string) (*models.SubscriptionStatus, error) {
	return &models.SubscriptionStatus{Tier: models.TierFree, Status: models.StatusActive}, nil
}

type memoryRepo struct {
	orders map[string]models.Order
}

func (r *memoryRepo) CreateOrder(_ context.Context, order models.Order) (int, bool, error) {
	if _, ok := r.orders[order.Reference]; ok {
		return len(r.orders), false, nil
	}
	r.orders[order.Reference] = order
	return len(r.orders), true, nil
}

func (r *memoryRepo) SaveVerifiedOrder(_ context.Context, order models.Order) (int, bool, error) {
	prev, ok := r.orders[order.Reference]
	order.Verified = true
	r.orders[order.Reference] = order
	return len(r.orders), !ok || !prev.Verified, nil
}

func (r *memoryRepo) GetOrder(_ context.Context, reference string) (*models.Order, error) {
	o, ok := r.orders[reference]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memoryRepo) ListOrders(_ context.Context, userUID string, _, _ int) ([]*models.Order, error) {
	var res []*models.Order
	for _, o := range r.orders {
		o := o
		if o.UserUID == userUID {
			res = append(res, &o)
		}
	}
	return res, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *jwt.MakerImpl) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisCache, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisCache.Close() })

	cfg := &config.Config{
		HTTPServer: config.HTTPServer{RateLimit: 100, RateBurst: 100},
		FastSpring: config.FastSpring{WebhookSecret: "whsec"},
		Checkout: config.Checkout{
			ActivationDelay: time.Hour,
			PollInterval:    time.Second,
			MaxAttempts:     1,
			PollTimeout:     time.Second,
		},
		URLs: config.URLs{SignIn: "/sign-in", Studio: "/studio"},
	}

	products, err := catalog.New([]config.CatalogRow{{Tier: "plus", Duration: "month", Path: "plus-month", Price: 9.99}})
	require.NoError(t, err)

	subs := subscription.NewService(stubFetcher{}, redisCache, time.Minute, logger)
	manager := checkoutservice.NewManager(checkoutservice.Deps{
		Builder:  stubBuilder{},
		Products: products,
		Poller:   checkoutservice.NewPoller(stubFetcher{}, cfg.Checkout, logger),
		Cache:    subs,
	}, logger)
	t.Cleanup(manager.Close)

	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, Services{
		Manager:      manager,
		Orders:       orders.NewService(&memoryRepo{orders: map[string]models.Order{}}, manager.Registry(), nil, logger),
		Subscription: subs,
		Catalog:      products,
		Tokens:       maker,
		Health:       map[string]health.Pinger{"redis": okPinger{}},
	})
	return router, maker
}

func TestRoutes(t *testing.T) {
	router, maker := newTestRouter(t)
	token, err := maker.GenerateToken("u1", "u1@example.com")
	require.NoError(t, err)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		auth           bool
		expectedStatus int
		expectedBody   string
	}{
		{name: "pricing is public", method: http.MethodGet, path: "/api/v1/pricing", expectedStatus: http.StatusOK, expectedBody: `"plus-month"`},
		{name: "anonymous checkout needs sign in", method: http.MethodPost, path: "/api/v1/checkout", body: `{"tier":"plus","duration":"month"}`, expectedStatus: http.StatusUnauthorized, expectedBody: `"redirect_url":"/sign-in"`},
		{name: "order data without checkout", method: http.MethodPost, path: "/api/v1/checkout/data", body: `{"reference":"CURV-9","id":"o-9","tags":{"user_id":"u1"}}`, expectedStatus: http.StatusNotFound, expectedBody: `no checkout in progress`},
		{name: "idle checkout view", method: http.MethodGet, path: "/api/v1/checkout", expectedStatus: http.StatusOK, expectedBody: `"state":"idle"`},
		{name: "user opens checkout", method: http.MethodPost, path: "/api/v1/checkout", body: `{"tier":"plus","duration":"month"}`, auth: true, expectedStatus: http.StatusOK, expectedBody: `"session_id":"fs-plus-month"`},
		{name: "second checkout conflicts", method: http.MethodPost, path: "/api/v1/checkout", body: `{"tier":"plus","duration":"month"}`, auth: true, expectedStatus: http.StatusConflict, expectedBody: `checkout already in progress`},
		{name: "order data for open checkout", method: http.MethodPost, path: "/api/v1/checkout/data", body: `{"reference":"CURV-9","id":"o-9"}`, auth: true, expectedStatus: http.StatusOK, expectedBody: `"user_uid":"u1"`},
		{name: "subscription requires token", method: http.MethodGet, path: "/api/v1/subscription", expectedStatus: http.StatusUnauthorized, expectedBody: `"redirect_url":"/sign-in"`},
		{name: "subscription status", method: http.MethodGet, path: "/api/v1/subscription", auth: true, expectedStatus: http.StatusOK, expectedBody: `"activated":false`},
		{name: "webhook without signature", method: http.MethodPost, path: "/api/v1/webhooks/payment", body: `{"events":[]}`, expectedStatus: http.StatusUnauthorized},
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK, expectedBody: `"redis":"up"`},
		{name: "metrics", method: http.MethodGet, path: "/metrics", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}
