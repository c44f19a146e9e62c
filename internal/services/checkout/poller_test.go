package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

// fakeFetcher считает запросы статуса и активирует подписку на заданной попытке.
type fakeFetcher struct {
	mu         sync.Mutex
	calls      int
	activateOn int
	errOn      map[int]bool
	delay      time.Duration
}

func (f *fakeFetcher) FetchStatus(ctx context.Context, _ string) (*models.SubscriptionStatus, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.errOn[n] {
		return nil, errors.New("account api unavailable")
	}
	if f.activateOn > 0 && n >= f.activateOn {
		return &models.SubscriptionStatus{Tier: models.TierPlus, Status: models.StatusActive}, nil
	}
	return &models.SubscriptionStatus{Tier: models.TierFree, Status: models.StatusActive}, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testTimings() config.Checkout {
	return config.Checkout{
		ActivationDelay: 0,
		PollInterval:    5 * time.Millisecond,
		MaxAttempts:     15,
		PollTimeout:     time.Second,
	}
}

func TestPoller_StopsOnActivation(t *testing.T) {
	fetcher := &fakeFetcher{activateOn: 3}
	p := NewPoller(fetcher, testTimings(), newNoopLogger())

	var seen []int
	status, err := p.Await(context.Background(), "u-1", func(n int) { seen = append(seen, n) })
	require.NoError(t, err)

	assert.Equal(t, models.TierPlus, status.Tier)
	assert.Equal(t, 3, fetcher.Calls())
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestPoller_WaitsForDelay(t *testing.T) {
	cfg := testTimings()
	cfg.ActivationDelay = 80 * time.Millisecond
	fetcher := &fakeFetcher{activateOn: 1}
	p := NewPoller(fetcher, cfg, newNoopLogger())

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Await(context.Background(), "u-1", nil)
		errCh <- err
	}()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, fetcher.Calls(), "no status request before the delay")

	require.NoError(t, <-errCh)
	assert.GreaterOrEqual(t, time.Since(start), cfg.ActivationDelay)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestPoller_ExhaustsAttempts(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPoller(fetcher, testTimings(), newNoopLogger())

	status, err := p.Await(context.Background(), "u-1", nil)
	assert.Nil(t, status)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActivationTimeout)
	assert.Equal(t, 15, fetcher.Calls())
}

func TestPoller_TimeoutBeforeAttempts(t *testing.T) {
	cfg := testTimings()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.PollTimeout = 70 * time.Millisecond
	fetcher := &fakeFetcher{}
	p := NewPoller(fetcher, cfg, newNoopLogger())

	start := time.Now()
	_, err := p.Await(context.Background(), "u-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActivationTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.LessOrEqual(t, fetcher.Calls(), 4)
	assert.GreaterOrEqual(t, fetcher.Calls(), 1)
}

func TestPoller_SlowRequestsDoNotOverlap(t *testing.T) {
	cfg := testTimings()
	cfg.PollInterval = 2 * time.Millisecond
	cfg.MaxAttempts = 5
	fetcher := &fakeFetcher{activateOn: 5, delay: 10 * time.Millisecond}
	p := NewPoller(fetcher, cfg, newNoopLogger())

	_, err := p.Await(context.Background(), "u-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, fetcher.Calls())
}

func TestPoller_SwallowsTransientErrors(t *testing.T) {
	fetcher := &fakeFetcher{activateOn: 3, errOn: map[int]bool{1: true, 2: true}}
	p := NewPoller(fetcher, testTimings(), newNoopLogger())

	status, err := p.Await(context.Background(), "u-1", nil)
	require.NoError(t, err)
	assert.True(t, status.Activated())
	assert.Equal(t, 3, fetcher.Calls())
}

func TestPoller_Cancel(t *testing.T) {
	cfg := testTimings()
	cfg.PollInterval = 10 * time.Millisecond
	fetcher := &fakeFetcher{}
	p := NewPoller(fetcher, cfg, newNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Await(ctx, "u-1", nil)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return fetcher.Calls() >= 2 }, time.Second, time.Millisecond)
	cancel()
	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrActivationTimeout)

	calls := fetcher.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, fetcher.Calls())
}

func TestPoller_CancelDuringDelay(t *testing.T) {
	cfg := testTimings()
	cfg.ActivationDelay = time.Second
	fetcher := &fakeFetcher{activateOn: 1}
	p := NewPoller(fetcher, cfg, newNoopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Await(ctx, "u-1", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, fetcher.Calls())
}
