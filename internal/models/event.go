package models

import "time"

// Ключи маршрутизации событий checkout.
const (
	RoutingCheckoutActivated = "checkout.activated"
	RoutingGuestCompleted    = "checkout.guest_completed"
	RoutingOrderCompleted    = "order.completed"
)

// CheckoutEvent событие, публикуемое после завершения попытки оформления.
type CheckoutEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	UserUID    string    `json:"user_uid,omitempty"`
	Email      string    `json:"email,omitempty"`
	Tier       Tier      `json:"tier"`
	Duration   Duration  `json:"duration"`
	Reference  string    `json:"reference,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
