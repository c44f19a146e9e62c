package checkout

import (
	"sync"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/paymentprovider"
)

// Callbacks обработчики событий окна оплаты для одной попытки.
type Callbacks struct {
	// OnPopupClosed вызывается при закрытии окна. nil reference означает отмену.
	OnPopupClosed func(reference *string)
	// OnData вызывается, когда доступны данные заказа.
	OnData func(data paymentprovider.OrderData)
}

// Registry хранит колбэки окна оплаты по владельцу попытки.
// Колбэки вызываются без удержания блокировки реестра.
type Registry struct {
	mu        sync.Mutex
	callbacks map[string]Callbacks
}

// NewRegistry создает пустой реестр.
func NewRegistry() *Registry {
	return &Registry{callbacks: make(map[string]Callbacks)}
}

// Register устанавливает колбэки владельца, заменяя предыдущие.
func (r *Registry) Register(owner string, cb Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[owner] = cb
}

// Clear удаляет колбэки владельца.
func (r *Registry) Clear(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, owner)
}

func (r *Registry) lookup(owner string) (Callbacks, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.callbacks[owner]
	return cb, ok
}

// PopupClosed передает закрытие окна зарегистрированной попытке.
func (r *Registry) PopupClosed(owner string, reference *string) error {
	cb, ok := r.lookup(owner)
	if !ok || cb.OnPopupClosed == nil {
		return ErrNoCheckout
	}
	cb.OnPopupClosed(reference)
	return nil
}

// DataReceived передает данные заказа зарегистрированной попытке.
func (r *Registry) DataReceived(owner string, data paymentprovider.OrderData) error {
	cb, ok := r.lookup(owner)
	if !ok || cb.OnData == nil {
		return ErrNoCheckout
	}
	cb.OnData(data)
	return nil
}
