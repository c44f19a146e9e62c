// Package notifier читает события checkout из RabbitMQ и рассылает письма.
package notifier

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/smtp"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/services/notify"
)

// App нотификатор.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *notify.Sender
	logger *slog.Logger
}

// New подключается к брокеру и объявляет очереди checkout.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.CheckoutQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	sender := notify.NewSender(transport, notify.Links{
		SignIn: cfg.URLs.SignIn,
		Studio: cfg.URLs.Studio,
	}, logger)

	return &App{
		conn:   conn,
		ch:     ch,
		sender: sender,
		logger: logger,
	}, nil
}

// Run запускает потребителей и ждет отмены ctx.
func (a *App) Run(ctx context.Context) error {
	consumers := map[string]func([]byte) error{
		rabbitmq.QueueActivated:      a.sender.SendActivated,
		rabbitmq.QueueGuestCompleted: a.sender.SendGuestCompleted,
		rabbitmq.QueueReceipts:       a.sender.SendReceipt,
	}
	for queue, handler := range consumers {
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, queue, handler, a.logger); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", queue), sl.Err(err))
			a.shutdown()
			return err
		}
	}

	a.logger.Info("notifier started")
	<-ctx.Done()
	a.logger.Info("notifier shutting down gracefully")
	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
