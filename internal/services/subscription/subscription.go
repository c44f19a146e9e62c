// Package subscription отдает статус подписки пользователя с кешированием в redis.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

const keyPrefix = "subscription_status:"

// StatusFetcher источник статуса подписки.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, userUID string) (*models.SubscriptionStatus, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// Service читает статус подписки через кеш.
type Service struct {
	fetcher StatusFetcher
	cache   Cache
	ttl     time.Duration
	log     *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(fetcher StatusFetcher, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		log:     log,
	}
}

// CacheKey ключ статуса пользователя в кеше.
func CacheKey(userUID string) string {
	return keyPrefix + userUID
}

// Status возвращает статус подписки. Ошибки кеша не мешают ответу,
// статус тогда берется напрямую из API аккаунтов.
func (s *Service) Status(ctx context.Context, userUID string) (*models.SubscriptionStatus, error) {
	const op = "subscription.Status"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID))

	key := CacheKey(userUID)
	var cached models.SubscriptionStatus
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("failed to read status from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	status, err := s.fetcher.FetchStatus(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, key, status, s.ttl); err != nil {
		log.Warn("failed to cache status", sl.Err(err))
	}
	return status, nil
}

// Invalidate сбрасывает закешированный статус пользователя.
func (s *Service) Invalidate(ctx context.Context, userUID string) error {
	const op = "subscription.Invalidate"
	if err := s.cache.Invalidate(ctx, CacheKey(userUID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
