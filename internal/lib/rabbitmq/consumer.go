package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
)

// ErrPermanent ошибка обработчика, которую повтор не исправит.
// Такое сообщение не возвращается в очередь.
var ErrPermanent = errors.New("permanent failure")

// Delivery сообщение из очереди.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// handleDelivery подтверждает сообщение при успехе. При ошибке сообщение
// возвращается в очередь один раз: повторно доставленное или с постоянной
// ошибкой отбрасывается (или уходит в dead letter exchange очереди).
func handleDelivery(d Delivery, body []byte, redelivered bool, handler func([]byte) error, log *slog.Logger) {
	if err := handler(body); err != nil {
		requeue := !redelivered && !errors.Is(err, ErrPermanent)
		log.Error("failed to handle message", slog.Bool("requeue", requeue), sl.Err(err))
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}

// ConsumerMessage создает потребителя сообщений из очереди RabbitMQ.
// Одновременно обрабатывается не больше 10 сообщений. После отмены ctx
// новые сообщения не берутся в работу и возвращаются в очередь.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, handler func([]byte) error, log *slog.Logger) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))
	sem := make(chan struct{}, 10)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				if !acquire(ctx, sem) {
					if err := d.Nack(false, true); err != nil {
						log.Error("failed to return message", sl.Err(err))
					}
					return
				}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					handleDelivery(&d, d.Body, d.Redelivered, handler, log)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// acquire занимает слот семафора или возвращает false после отмены ctx.
func acquire(ctx context.Context, sem chan struct{}) bool {
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}
