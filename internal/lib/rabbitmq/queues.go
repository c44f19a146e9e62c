package rabbitmq

import "github.com/magabrotheeeer/curvecoach-checkout/internal/models"

// QueueConfig очередь и ключ маршрутизации, с которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Очереди, которые читает нотификатор.
const (
	QueueActivated      = "checkout.activated"
	QueueGuestCompleted = "checkout.guest_completed"
	QueueReceipts       = "checkout.receipts"
)

// CheckoutQueues возвращает очереди событий checkout.
func CheckoutQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueActivated, RoutingKey: models.RoutingCheckoutActivated},
		{QueueName: QueueGuestCompleted, RoutingKey: models.RoutingGuestCompleted},
		{QueueName: QueueReceipts, RoutingKey: models.RoutingOrderCompleted},
	}
}
