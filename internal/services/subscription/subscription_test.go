package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

type FetcherMock struct{ mock.Mock }

func (m *FetcherMock) FetchStatus(ctx context.Context, userUID string) (*models.SubscriptionStatus, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionStatus), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestService_Status(t *testing.T) {
	plus := &models.SubscriptionStatus{Tier: models.TierPlus, Status: models.StatusActive}

	tests := []struct {
		name       string
		setupMocks func(f *FetcherMock, c *CacheMock)
		want       *models.SubscriptionStatus
		wantErr    bool
	}{
		{
			name: "cache hit",
			setupMocks: func(_ *FetcherMock, c *CacheMock) {
				c.On("Get", mock.Anything, "subscription_status:u-1", mock.Anything).
					Run(func(args mock.Arguments) {
						*args.Get(2).(*models.SubscriptionStatus) = *plus
					}).Return(true, nil).Once()
			},
			want: plus,
		},
		{
			name: "cache miss fetches and stores",
			setupMocks: func(f *FetcherMock, c *CacheMock) {
				c.On("Get", mock.Anything, "subscription_status:u-1", mock.Anything).Return(false, nil).Once()
				f.On("FetchStatus", mock.Anything, "u-1").Return(plus, nil).Once()
				c.On("Set", mock.Anything, "subscription_status:u-1", plus, 10*time.Minute).Return(nil).Once()
			},
			want: plus,
		},
		{
			name: "cache errors are not fatal",
			setupMocks: func(f *FetcherMock, c *CacheMock) {
				c.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down")).Once()
				f.On("FetchStatus", mock.Anything, "u-1").Return(plus, nil).Once()
				c.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()
			},
			want: plus,
		},
		{
			name: "fetch error",
			setupMocks: func(f *FetcherMock, c *CacheMock) {
				c.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()
				f.On("FetchStatus", mock.Anything, "u-1").Return(nil, errors.New("account api down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := new(FetcherMock)
			cache := new(CacheMock)
			tt.setupMocks(fetcher, cache)
			svc := NewService(fetcher, cache, 10*time.Minute, newNoopLogger())

			got, err := svc.Status(context.Background(), "u-1")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			fetcher.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestService_Invalidate(t *testing.T) {
	cache := new(CacheMock)
	cache.On("Invalidate", mock.Anything, "subscription_status:u-1").Return(nil).Once()
	cache.On("Invalidate", mock.Anything, "subscription_status:u-2").Return(errors.New("redis down")).Once()
	svc := NewService(new(FetcherMock), cache, time.Minute, newNoopLogger())

	assert.NoError(t, svc.Invalidate(context.Background(), "u-1"))
	assert.Error(t, svc.Invalidate(context.Background(), "u-2"))
	cache.AssertExpectations(t)
}
