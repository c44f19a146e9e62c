package paymentprovider

import (
	"time"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

// Product продукт в конфигурации popup-окна.
type Product struct {
	Path string `json:"path"`
}

// PushConfig конфигурация, передаваемая построителю checkout.
type PushConfig struct {
	Products []Product         `json:"products"`
	Tags     map[string]string `json:"tags,omitempty"`
	Checkout bool              `json:"checkout"`
}

// Popup описание открытого checkout-окна, которое фронтенд показывает пользователю.
type Popup struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type sessionItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type createSessionRequest struct {
	Items []sessionItem     `json:"items"`
	Tags  map[string]string `json:"tags,omitempty"`
}

type createSessionResponse struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Expires  int64  `json:"expires"`
}

// Customer покупатель в данных заказа.
type Customer struct {
	Email string `json:"email"`
}

// Item позиция в данных заказа.
type Item struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// OrderData данные заказа. Одинаковая форма у колбэка popup-окна
// и у события order.completed в webhook.
type OrderData struct {
	Reference string            `json:"reference" validate:"required"`
	ID        string            `json:"id" validate:"required"`
	Customer  Customer          `json:"customer"`
	Items     []Item            `json:"items"`
	Total     float64           `json:"total"`
	Currency  string            `json:"currency"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// UserUID возвращает идентификатор пользователя из тегов заказа.
func (d OrderData) UserUID() string {
	return d.Tags[TagUserID]
}

// ToOrder переводит данные платежной системы в доменный заказ.
func (d OrderData) ToOrder() models.Order {
	items := make([]models.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, models.OrderItem{Product: it.Product, Quantity: it.Quantity, Subtotal: it.Subtotal})
	}
	return models.Order{
		Reference:  d.Reference,
		ProviderID: d.ID,
		UserUID:    d.UserUID(),
		Email:      d.Customer.Email,
		Items:      items,
		Total:      d.Total,
		Currency:   d.Currency,
	}
}

// WebhookEvent событие webhook платежной системы.
type WebhookEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Live      bool      `json:"live"`
	Processed bool      `json:"processed"`
	Created   int64     `json:"created"`
	Data      OrderData `json:"data"`
}

// WebhookPayload тело webhook, в одном запросе может прийти несколько событий.
type WebhookPayload struct {
	Events []WebhookEvent `json:"events"`
}
