package checkoutstart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/catalog"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/http/middlewarectx"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/checkout"
)

// MockService реализует интерфейс checkoutstart.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Begin(ctx context.Context, owner checkout.Owner, tier models.Tier, duration models.Duration) (*models.CheckoutSession, *paymentprovider.Popup, error) {
	args := m.Called(ctx, owner, tier, duration)
	var (
		session *models.CheckoutSession
		popup   *paymentprovider.Popup
	)
	if res := args.Get(0); res != nil {
		session = res.(*models.CheckoutSession)
	}
	if res := args.Get(1); res != nil {
		popup = res.(*paymentprovider.Popup)
	}
	return session, popup, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartHandler(t *testing.T) {
	urls := checkout.URLs{SignIn: "/sign-in", Studio: "/studio"}
	user := checkout.UserOwner("u1", "u1@example.com")

	tests := []struct {
		name           string
		body           string
		userUID        string
		guestSession   string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
		expectedHeader string
	}{
		{
			name:    "popup opened",
			body:    `{"tier":"plus","duration":"month"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, user, models.TierPlus, models.DurationMonth).Return(
					&models.CheckoutSession{ID: "s-1", State: models.StateProcessing, Tier: models.TierPlus},
					&paymentprovider.Popup{SessionID: "fs-1", URL: "https://curvecoach.onfastspring.com/popup/fs-1"},
					nil,
				)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"popup":{"session_id":"fs-1"`,
		},
		{
			name:           "invalid json",
			body:           `{"tier":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "unknown tier rejected by validation",
			body:           `{"tier":"gold","duration":"month"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Tier must be one of`,
		},
		{
			name:           "missing duration",
			body:           `{"tier":"plus"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Duration is a required field`,
		},
		{
			name: "anonymous user redirected to sign in",
			body: `{"tier":"plus","duration":"month"}`,
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, checkout.Owner{}, models.TierPlus, models.DurationMonth).
					Return(nil, nil, checkout.ErrUnauthenticated)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"redirect_url":"/sign-in"`,
		},
		{
			name:    "checkout already in progress",
			body:    `{"tier":"plus","duration":"month"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, user, models.TierPlus, models.DurationMonth).
					Return(nil, nil, checkout.ErrCheckoutInProgress)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"checkout already in progress"`,
		},
		{
			name:    "product missing from catalog",
			body:    `{"tier":"ultra","duration":"day"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, user, models.TierUltra, models.DurationDay).
					Return(nil, nil, fmt.Errorf("checkout.Begin: %w", catalog.ErrUnknownProduct))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"error":"product is not available"`,
		},
		{
			name:    "payment script not loaded",
			body:    `{"tier":"plus","duration":"month"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, user, models.TierPlus, models.DurationMonth).Return(
					&models.CheckoutSession{State: models.StateError, ErrorKind: models.ErrorKindNotLoaded},
					nil,
					&checkout.PaymentError{Kind: models.ErrorKindNotLoaded},
				)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   checkout.MessageNotLoaded,
		},
		{
			name:    "unknown payment failure",
			body:    `{"tier":"plus","duration":"month"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, user, models.TierPlus, models.DurationMonth).Return(
					&models.CheckoutSession{State: models.StateError, ErrorKind: models.ErrorKindUnknown},
					nil,
					&checkout.PaymentError{Kind: models.ErrorKindUnknown, Err: errors.New("boom")},
				)
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `"error_kind":"unknown"`,
		},
		{
			name:         "guest gets session header",
			body:         `{"tier":"basic","duration":"day"}`,
			guestSession: "g-1",
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, checkout.GuestOwner("g-1"), models.TierBasic, models.DurationDay).Return(
					&models.CheckoutSession{ID: "g-1", Guest: true, State: models.StateProcessing},
					&paymentprovider.Popup{SessionID: "fs-2"},
					nil,
				)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"state":"processing"`,
			expectedHeader: "g-1",
		},
		{
			name:    "unexpected error",
			body:    `{"tier":"plus","duration":"month"}`,
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("Begin", mock.Anything, user, models.TierPlus, models.DurationMonth).
					Return(nil, nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService, urls)

			req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(tt.body))
			if tt.userUID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
				ctx = context.WithValue(ctx, middlewarectx.Email, tt.userUID+"@example.com")
				req = req.WithContext(ctx)
			}
			if tt.guestSession != "" {
				req.Header.Set(middlewarectx.HeaderCheckoutSession, tt.guestSession)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.Equal(t, tt.expectedHeader, w.Header().Get(middlewarectx.HeaderCheckoutSession))
			mockService.AssertExpectations(t)
		})
	}
}
