// Package orders сохраняет заказы из колбэков popup-окна и webhook
// платежной системы и передает их текущей попытке оформления.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
)

// Repository хранилище заказов.
type Repository interface {
	CreateOrder(ctx context.Context, order models.Order) (id int, created bool, err error)
	SaveVerifiedOrder(ctx context.Context, order models.Order) (id int, firstVerified bool, err error)
	GetOrder(ctx context.Context, reference string) (*models.Order, error)
	ListOrders(ctx context.Context, userUID string, limit, offset int) ([]*models.Order, error)
}

// Dispatcher передает данные заказа попытке владельца.
type Dispatcher interface {
	DataReceived(owner string, data paymentprovider.OrderData) error
}

// Publisher публикует события заказов.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Service сервис заказов.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	publisher  Publisher
	log        *slog.Logger
}

// NewService создает Service. publisher может быть nil.
func NewService(repo Repository, dispatcher Dispatcher, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		publisher:  publisher,
		log:        log,
	}
}

// RecordCallback сохраняет заказ из колбэка popup-окна и передает данные попытке
// владельца. Данные колбэка не подписаны, поэтому заказ только вставляется
// и квитанция не отправляется.
func (s *Service) RecordCallback(ctx context.Context, owner string, data paymentprovider.OrderData) (*models.Order, error) {
	const op = "orders.RecordCallback"
	log := s.log.With(slog.String("op", op), slog.String("reference", data.Reference))

	order := data.ToOrder()
	_, created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.dispatch(log, owner, data)

	log.Info("order received from popup", slog.Bool("created", created))
	return &order, nil
}

// RecordVerified сохраняет заказ из подписанного webhook. Событие order.completed
// публикуется только при первом подтверждении заказа. Отсутствие попытки у
// владельца не считается ошибкой: webhook может прийти после того, как
// пользователь ушел со страницы.
func (s *Service) RecordVerified(ctx context.Context, owner string, data paymentprovider.OrderData) (*models.Order, error) {
	const op = "orders.RecordVerified"
	log := s.log.With(slog.String("op", op), slog.String("reference", data.Reference))

	order := data.ToOrder()
	order.Verified = true
	_, firstVerified, err := s.repo.SaveVerifiedOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.dispatch(log, owner, data)

	if firstVerified && s.publisher != nil {
		if err := s.publisher.Publish(ctx, models.RoutingOrderCompleted, order); err != nil {
			log.Error("failed to publish order", sl.Err(err))
		}
	}

	log.Info("order verified", slog.String("user_uid", order.UserUID), slog.Bool("first", firstVerified))
	return &order, nil
}

func (s *Service) dispatch(log *slog.Logger, owner string, data paymentprovider.OrderData) {
	if owner == "" || s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.DataReceived(owner, data); err != nil {
		log.Debug("order data not dispatched", slog.String("owner", owner), sl.Err(err))
	}
}

// Get возвращает заказ по reference.
func (s *Service) Get(ctx context.Context, reference string) (*models.Order, error) {
	const op = "orders.Get"
	order, err := s.repo.GetOrder(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// List возвращает заказы пользователя.
func (s *Service) List(ctx context.Context, userUID string, limit, offset int) ([]*models.Order, error) {
	const op = "orders.List"
	if userUID == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("empty user uid"))
	}
	list, err := s.repo.ListOrders(ctx, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}
