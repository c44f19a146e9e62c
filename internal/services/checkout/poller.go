package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/metrics"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

// StatusFetcher читает статус подписки из API аккаунтов.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, userUID string) (*models.SubscriptionStatus, error)
}

// Poller ждет, пока оплата превратится в активный доступ.
//
// Основная граница опроса: maxAttempts запросов с шагом interval.
// timeout считается от конца задержки и служит запасом на случай,
// если запросы к API аккаунтов тормозят и тики растягиваются.
type Poller struct {
	fetcher     StatusFetcher
	delay       time.Duration
	interval    time.Duration
	timeout     time.Duration
	maxAttempts int
	log         *slog.Logger
}

// NewPoller создает Poller с таймингами из конфига.
func NewPoller(fetcher StatusFetcher, cfg config.Checkout, log *slog.Logger) *Poller {
	return &Poller{
		fetcher:     fetcher,
		delay:       cfg.ActivationDelay,
		interval:    cfg.PollInterval,
		timeout:     cfg.PollTimeout,
		maxAttempts: cfg.MaxAttempts,
		log:         log,
	}
}

// Await ждет delay, затем опрашивает статус раз в interval, пока статус не станет
// активным. Запросы идут строго последовательно. Ошибки отдельных запросов
// только логируются. Исчерпание попыток или таймаута возвращает ErrActivationTimeout,
// отмена ctx возвращает ctx.Err(). Все таймеры освобождаются при любом выходе.
func (p *Poller) Await(ctx context.Context, userUID string, onAttempt func(attempt int)) (*models.SubscriptionStatus, error) {
	const op = "checkout.Poller.Await"
	log := p.log.With(sl.Op(op), slog.String("user_uid", userUID))

	if p.delay > 0 {
		delay := time.NewTimer(p.delay)
		defer delay.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-delay.C:
		}
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-pollCtx.Done():
			return nil, p.stopReason(ctx, op)
		case <-ticker.C:
		}
		if pollCtx.Err() != nil {
			return nil, p.stopReason(ctx, op)
		}

		if onAttempt != nil {
			onAttempt(attempt)
		}
		status, err := p.fetcher.FetchStatus(pollCtx, userUID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.PollRequests.WithLabelValues("error").Inc()
			log.Warn("status poll failed", slog.Int("attempt", attempt), sl.Err(err))
			continue
		}
		if status.Activated() {
			metrics.PollRequests.WithLabelValues("active").Inc()
			metrics.ActivationAttempts.Observe(float64(attempt))
			log.Info("subscription activated", slog.Int("attempt", attempt), slog.String("tier", string(status.Tier)))
			return status, nil
		}
		metrics.PollRequests.WithLabelValues("pending").Inc()
		log.Debug("subscription not active yet", slog.Int("attempt", attempt), slog.String("status", status.Status))
	}

	log.Warn("activation attempts exhausted", slog.Int("attempts", p.maxAttempts))
	return nil, fmt.Errorf("%s: %w", op, ErrActivationTimeout)
}

func (p *Poller) stopReason(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.log.Warn("activation timeout reached", sl.Op(op), slog.Duration("timeout", p.timeout))
	return fmt.Errorf("%s: %w", op, ErrActivationTimeout)
}
