// Package notify отправляет письма по событиям checkout из RabbitMQ.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/smtp"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

// ErrNoRecipient в событии нет адреса получателя.
var ErrNoRecipient = fmt.Errorf("%w: event has no recipient email", rabbitmq.ErrPermanent)

// Links адреса, которые попадают в письма.
type Links struct {
	SignIn string
	Studio string
}

// Sender отправляет письма через SMTP транспорт.
type Sender struct {
	transport smtp.TransportInterface
	links     Links
	log       *slog.Logger
}

// NewSender создает новый экземпляр Sender.
func NewSender(transport smtp.TransportInterface, links Links, log *slog.Logger) *Sender {
	return &Sender{
		transport: transport,
		links:     links,
		log:       log,
	}
}

// SendActivated письмо об активации плана после оплаты.
func (s *Sender) SendActivated(body []byte) error {
	const op = "notify.SendActivated"
	event, err := decodeEvent(body)
	if err != nil {
		s.log.Error("failed to decode event", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}
	if event.Email == "" {
		s.log.Warn("skip activation email without recipient", slog.String("op", op), slog.String("user_uid", event.UserUID))
		return nil
	}

	subject := "Your CurveCoach plan is active"
	text := fmt.Sprintf("Hi!\n\nYour %s plan (%s) is now active. Order reference: %s.\n\nOpen the studio to start tuning your curve: %s\n",
		planName(event.Tier), event.Duration, event.Reference, s.links.Studio)
	return s.sendEmail([]string{event.Email}, subject, text)
}

// SendGuestCompleted письмо гостю: аккаунт создан, нужно войти.
func (s *Sender) SendGuestCompleted(body []byte) error {
	const op = "notify.SendGuestCompleted"
	event, err := decodeEvent(body)
	if err != nil {
		s.log.Error("failed to decode event", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}
	if event.Email == "" {
		s.log.Error("guest event without email", slog.String("op", op), slog.String("reference", event.Reference))
		return fmt.Errorf("%s: %w", op, ErrNoRecipient)
	}

	subject := "Welcome to CurveCoach"
	text := fmt.Sprintf("Hi!\n\nThanks for your purchase (order %s). We created a CurveCoach account for %s with the %s plan.\n\nSign in to start using it: %s\n",
		event.Reference, event.Email, planName(event.Tier), s.links.SignIn)
	return s.sendEmail([]string{event.Email}, subject, text)
}

// SendReceipt квитанция по сохраненному заказу.
func (s *Sender) SendReceipt(body []byte) error {
	const op = "notify.SendReceipt"
	var order models.Order
	if err := json.Unmarshal(body, &order); err != nil {
		s.log.Error("failed to decode order", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}
	if order.Email == "" {
		s.log.Warn("skip receipt without recipient", slog.String("op", op), slog.String("reference", order.Reference))
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n\n", order.Reference)
	for _, it := range order.Items {
		fmt.Fprintf(&b, "%s x%d  %.2f %s\n", it.Product, it.Quantity, it.Subtotal, order.Currency)
	}
	fmt.Fprintf(&b, "\nTotal: %.2f %s\n", order.Total, order.Currency)
	return s.sendEmail([]string{order.Email}, "Your CurveCoach receipt "+order.Reference, b.String())
}

func decodeEvent(body []byte) (models.CheckoutEvent, error) {
	var event models.CheckoutEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, err
	}
	return event, nil
}

func planName(t models.Tier) string {
	if t == "" {
		return "CurveCoach"
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

func (s *Sender) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.GetSMTPUser()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to), slog.String("subject", subject))
	return nil
}
