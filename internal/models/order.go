package models

import "time"

// OrderItem позиция заказа.
type OrderItem struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// Order данные заказа, полученные из колбэка popup-окна или webhook платежной системы.
type Order struct {
	Reference  string      `json:"reference"`
	ProviderID string      `json:"id"`
	UserUID    string      `json:"user_uid,omitempty"`
	Email      string      `json:"email"`
	Items      []OrderItem `json:"items"`
	Total      float64     `json:"total"`
	Currency   string      `json:"currency"`
	Verified   bool        `json:"verified"`
	CreatedAt  time.Time   `json:"created_at"`
}
