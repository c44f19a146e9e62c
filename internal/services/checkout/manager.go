// Package checkout содержит поток оформления покупки: открытие окна оплаты,
// ожидание активации доступа и представление состояния попытки.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/catalog"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/metrics"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
)

const (
	userKeyPrefix  = "user:"
	guestKeyPrefix = "guest:"

	sideEffectTimeout = 5 * time.Second
)

// Builder открывает окно оплаты.
type Builder interface {
	Ready() error
	Push(ctx context.Context, cfg paymentprovider.PushConfig) (*paymentprovider.Popup, error)
}

// ProductResolver сопоставляет уровень и период с продуктом платежной системы.
type ProductResolver interface {
	Resolve(tier models.Tier, duration models.Duration) (catalog.Product, error)
}

// StatusInvalidator сбрасывает закешированный статус подписки.
type StatusInvalidator interface {
	Invalidate(ctx context.Context, userUID string) error
}

// EventPublisher публикует события checkout.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Owner владелец попытки оформления.
type Owner struct {
	Key     string
	UserUID string
	Email   string
}

// Authenticated сообщает, что владелец вошел в аккаунт.
func (o Owner) Authenticated() bool {
	return o.UserUID != ""
}

// UserOwner владелец для вошедшего пользователя.
func UserOwner(userUID, email string) Owner {
	return Owner{Key: userKeyPrefix + userUID, UserUID: userUID, Email: email}
}

// GuestOwner владелец для гостевой попытки по идентификатору сессии.
func GuestOwner(sessionID string) Owner {
	if sessionID == "" {
		return Owner{}
	}
	return Owner{Key: guestKeyPrefix + sessionID}
}

// Deps зависимости Manager.
type Deps struct {
	Builder    Builder
	Products   ProductResolver
	Poller     *Poller
	Cache      StatusInvalidator
	Publisher  EventPublisher
	Registry   *Registry
	AllowGuest bool

	// SessionTTL время жизни попытки без активности. Не касается опроса:
	// его ограничивает PollTimeout. Ноль отключает истечение.
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

type attempt struct {
	session models.CheckoutSession
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager хранит попытки оформления в памяти и проводит их через состояния
// idle → processing → polling → complete | error. У владельца одновременно
// может выполняться только одна попытка.
type Manager struct {
	mu       sync.Mutex
	attempts map[string]*attempt

	deps Deps
	log  *slog.Logger
	now  func() time.Time

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager создает Manager.
func NewManager(deps Deps, log *slog.Logger) *Manager {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		attempts: make(map[string]*attempt),
		deps:     deps,
		log:      log,
		now:      time.Now,
		baseCtx:  ctx,
		stop:     stop,
	}
	if deps.SessionTTL > 0 && deps.SweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop(deps.SweepInterval)
	}
	return m
}

// Registry возвращает реестр колбэков окна оплаты.
func (m *Manager) Registry() *Registry {
	return m.deps.Registry
}

// Begin начинает оформление покупки и возвращает адрес окна оплаты.
// Не ждет закрытия окна: дальнейшее развитие попытки приходит через Registry.
func (m *Manager) Begin(ctx context.Context, owner Owner, tier models.Tier, duration models.Duration) (*models.CheckoutSession, *paymentprovider.Popup, error) {
	const op = "checkout.Begin"
	log := m.log.With(sl.Op(op), slog.String("tier", string(tier)), slog.String("duration", string(duration)))

	sessionID := uuid.NewString()
	if !owner.Authenticated() {
		if !m.deps.AllowGuest {
			return nil, nil, ErrUnauthenticated
		}
		if owner.Key == "" {
			owner = GuestOwner(sessionID)
		} else {
			sessionID = strings.TrimPrefix(owner.Key, guestKeyPrefix)
		}
	}
	log = log.With(slog.String("owner", owner.Key))

	product, err := m.deps.Products.Resolve(tier, duration)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := m.now()
	session := models.CheckoutSession{
		ID:        sessionID,
		Owner:     owner.Key,
		UserUID:   owner.UserUID,
		Guest:     !owner.Authenticated(),
		Tier:      tier,
		Duration:  duration,
		Email:     owner.Email,
		StartedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	if prev, ok := m.attempts[owner.Key]; ok && prev.session.State.Live() && !m.expired(prev, now) {
		m.mu.Unlock()
		return nil, nil, ErrCheckoutInProgress
	}
	delete(m.attempts, owner.Key)
	m.deps.Registry.Clear(owner.Key)

	if err := m.deps.Builder.Ready(); err != nil {
		perr := classifyPaymentError(err)
		session.State = models.StateError
		session.ErrorKind = perr.Kind
		session.Error = perr.Error()
		m.attempts[owner.Key] = &attempt{session: session}
		m.mu.Unlock()
		metrics.CheckoutFailed.WithLabelValues(string(perr.Kind)).Inc()
		log.Error("payment builder is not ready", sl.Err(err))
		return copySession(session), nil, perr
	}

	session.State = models.StateProcessing
	m.attempts[owner.Key] = &attempt{session: session}
	m.deps.Registry.Register(owner.Key, m.callbacks(owner.Key, sessionID))
	m.mu.Unlock()

	push := paymentprovider.PushConfig{
		Products: []paymentprovider.Product{{Path: product.Path}},
		Checkout: true,
	}
	if owner.Authenticated() {
		push.Tags = map[string]string{paymentprovider.TagUserID: owner.UserUID}
	}

	popup, err := m.deps.Builder.Push(ctx, push)
	if err != nil {
		perr := classifyPaymentError(err)
		log.Error("failed to open checkout", sl.Err(err))
		metrics.CheckoutFailed.WithLabelValues(string(perr.Kind)).Inc()
		current, ok := m.finish(owner.Key, sessionID, func(s *models.CheckoutSession) {
			s.State = models.StateError
			s.ErrorKind = perr.Kind
			s.Error = perr.Error()
		})
		if !ok {
			return nil, nil, ErrCanceled
		}
		return current, nil, perr
	}

	var current *models.CheckoutSession
	m.mu.Lock()
	if a, ok := m.attempts[owner.Key]; ok && a.session.ID == sessionID {
		current = copySession(a.session)
	}
	m.mu.Unlock()
	if current == nil {
		log.Info("checkout canceled while opening popup")
		return nil, nil, ErrCanceled
	}

	metrics.CheckoutStarted.WithLabelValues(string(tier), string(duration)).Inc()
	log.Info("checkout popup opened", slog.String("popup_session", popup.SessionID))
	return current, popup, nil
}

// Session возвращает копию текущей попытки владельца.
// Истекшая попытка удаляется и не возвращается.
func (m *Manager) Session(ownerKey string) (*models.CheckoutSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ownerKey]
	if !ok {
		return nil, false
	}
	if m.expired(a, m.now()) {
		m.evictLocked(ownerKey, a)
		return nil, false
	}
	return copySession(a.session), true
}

// Cancel отменяет попытку владельца или сбрасывает завершенную попытку в idle.
// Возвращается только после остановки опроса, поэтому после Cancel
// не будет ни одного запроса статуса.
func (m *Manager) Cancel(ownerKey string) error {
	m.mu.Lock()
	a, ok := m.attempts[ownerKey]
	if !ok {
		m.mu.Unlock()
		return ErrNoCheckout
	}
	delete(m.attempts, ownerKey)
	m.deps.Registry.Clear(ownerKey)
	cancel, done := a.cancel, a.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.log.Info("checkout canceled", slog.String("owner", ownerKey), slog.String("state", string(a.session.State)))
	return nil
}

// Close останавливает все ожидания активации и ждет их завершения.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.attempts {
		m.deps.Registry.Clear(key)
	}
	m.attempts = make(map[string]*attempt)
}

// expired сообщает, что попытка простояла дольше SessionTTL.
// Попытка в опросе не истекает, пока работает ее горутина.
func (m *Manager) expired(a *attempt, now time.Time) bool {
	if m.deps.SessionTTL <= 0 || a.session.State == models.StatePolling {
		return false
	}
	return now.Sub(a.session.UpdatedAt) > m.deps.SessionTTL
}

func (m *Manager) evictLocked(ownerKey string, a *attempt) {
	delete(m.attempts, ownerKey)
	m.deps.Registry.Clear(ownerKey)
	if a.cancel != nil {
		a.cancel()
	}
	if a.session.State == models.StateProcessing {
		metrics.CheckoutFailed.WithLabelValues("abandoned").Inc()
	}
}

// sweep удаляет истекшие попытки и возвращает их число.
func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, a := range m.attempts {
		if m.expired(a, now) {
			m.evictLocked(key, a)
			n++
		}
	}
	return n
}

func (m *Manager) sweepLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.baseCtx.Done():
			return
		case <-ticker.C:
			if n := m.sweep(m.now()); n > 0 {
				m.log.Info("expired checkouts removed", slog.Int("count", n))
			}
		}
	}
}

func (m *Manager) callbacks(ownerKey, sessionID string) Callbacks {
	return Callbacks{
		OnPopupClosed: func(reference *string) {
			m.popupClosed(ownerKey, sessionID, reference)
		},
		OnData: func(data paymentprovider.OrderData) {
			m.dataReceived(ownerKey, sessionID, data)
		},
	}
}

func (m *Manager) popupClosed(ownerKey, sessionID string, reference *string) {
	log := m.log.With(sl.Op("checkout.popupClosed"), slog.String("owner", ownerKey))

	m.mu.Lock()
	a, ok := m.attempts[ownerKey]
	if !ok || a.session.ID != sessionID || a.session.State != models.StateProcessing {
		m.mu.Unlock()
		return
	}

	if reference == nil || *reference == "" {
		delete(m.attempts, ownerKey)
		m.deps.Registry.Clear(ownerKey)
		m.mu.Unlock()
		log.Info("checkout popup closed without order")
		return
	}

	a.session.Reference = *reference
	a.session.UpdatedAt = m.now()

	if a.session.Guest {
		a.session.State = models.StateComplete
		m.deps.Registry.Clear(ownerKey)
		session := a.session
		m.mu.Unlock()
		log.Info("guest checkout complete", slog.String("reference", session.Reference))
		m.publish(models.RoutingGuestCompleted, session)
		return
	}

	a.session.State = models.StatePolling
	ctx, cancel := context.WithCancel(m.baseCtx)
	a.cancel = cancel
	a.done = make(chan struct{})
	m.wg.Add(1)
	go m.awaitActivation(ctx, cancel, a.done, ownerKey, sessionID, a.session.UserUID)
	m.mu.Unlock()

	log.Info("waiting for activation", slog.String("reference", *reference))
}

func (m *Manager) dataReceived(ownerKey, sessionID string, data paymentprovider.OrderData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ownerKey]
	if !ok || a.session.ID != sessionID {
		return
	}
	if a.session.Reference == "" {
		a.session.Reference = data.Reference
	}
	if data.Customer.Email != "" {
		a.session.Email = data.Customer.Email
	}
	a.session.UpdatedAt = m.now()
}

func (m *Manager) awaitActivation(ctx context.Context, cancel context.CancelFunc, done chan struct{}, ownerKey, sessionID, userUID string) {
	defer m.wg.Done()
	defer close(done)
	defer cancel()

	log := m.log.With(sl.Op("checkout.awaitActivation"), slog.String("owner", ownerKey))

	_, err := m.deps.Poller.Await(ctx, userUID, func(n int) {
		m.update(ownerKey, sessionID, func(s *models.CheckoutSession) { s.Attempts = n })
	})

	switch {
	case err == nil:
		if m.deps.Cache != nil {
			cctx, ccancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			if err := m.deps.Cache.Invalidate(cctx, userUID); err != nil {
				log.Warn("failed to invalidate subscription cache", sl.Err(err))
			}
			ccancel()
		}
		session, ok := m.finish(ownerKey, sessionID, func(s *models.CheckoutSession) {
			s.State = models.StateComplete
		})
		if !ok {
			return
		}
		metrics.ActivationOutcome.WithLabelValues("activated").Inc()
		m.publish(models.RoutingCheckoutActivated, *session)
	case errors.Is(err, ErrActivationTimeout):
		if _, ok := m.finish(ownerKey, sessionID, func(s *models.CheckoutSession) {
			s.State = models.StateError
			s.ErrorKind = models.ErrorKindActivationTimeout
			s.Error = ErrActivationTimeout.Error()
		}); ok {
			metrics.ActivationOutcome.WithLabelValues("timeout").Inc()
			metrics.CheckoutFailed.WithLabelValues(string(models.ErrorKindActivationTimeout)).Inc()
		}
	case ctx.Err() != nil:
		metrics.ActivationOutcome.WithLabelValues("canceled").Inc()
		log.Info("activation wait canceled")
	default:
		log.Error("activation wait failed", sl.Err(err))
		m.finish(ownerKey, sessionID, func(s *models.CheckoutSession) {
			s.State = models.StateError
			s.ErrorKind = models.ErrorKindUnknown
			s.Error = err.Error()
		})
	}
}

// update меняет попытку, если она все еще текущая.
func (m *Manager) update(ownerKey, sessionID string, fn func(*models.CheckoutSession)) (*models.CheckoutSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(ownerKey, sessionID, fn)
}

// finish переводит попытку в завершенное состояние и снимает колбэки.
func (m *Manager) finish(ownerKey, sessionID string, fn func(*models.CheckoutSession)) (*models.CheckoutSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.updateLocked(ownerKey, sessionID, fn)
	if ok {
		m.deps.Registry.Clear(ownerKey)
	}
	return session, ok
}

func (m *Manager) updateLocked(ownerKey, sessionID string, fn func(*models.CheckoutSession)) (*models.CheckoutSession, bool) {
	a, ok := m.attempts[ownerKey]
	if !ok || a.session.ID != sessionID {
		return nil, false
	}
	fn(&a.session)
	a.session.UpdatedAt = m.now()
	return copySession(a.session), true
}

func (m *Manager) publish(routingKey string, s models.CheckoutSession) {
	if m.deps.Publisher == nil {
		return
	}
	event := models.CheckoutEvent{
		Type:       routingKey,
		SessionID:  s.ID,
		UserUID:    s.UserUID,
		Email:      s.Email,
		Tier:       s.Tier,
		Duration:   s.Duration,
		Reference:  s.Reference,
		OccurredAt: m.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := m.deps.Publisher.Publish(ctx, routingKey, event); err != nil {
		m.log.Error("failed to publish checkout event", slog.String("routing_key", routingKey), sl.Err(err))
	}
}

func copySession(s models.CheckoutSession) *models.CheckoutSession {
	return &s
}
