// Package sender собирает обработчик уведомлений: потребитель очереди
// notifications.subscription и отправку писем через SMTP или Postmark.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/config"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/smtp"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/nextgig-subscriptions/internal/services/sender"
)

// Транспорты отправки писем.
const (
	TransportSMTP     = "smtp"
	TransportPostmark = "postmark"
)

const (
	rabbitMQRetries    = 10
	rabbitMQRetryDelay = 3 * time.Second
	consumerWorkers    = 4
)

// App — сервис отправки уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к брокеру и выбирает транспорт писем.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "sender.New"

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is required", op)
	}

	mailer, err := NewMailer(cfg.Email, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, rabbitMQRetries, rabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(mailer, logger),
		logger:        logger,
	}, nil
}

// NewMailer выбирает отправителя писем по настройке transport.
func NewMailer(cfg config.Email, logger *slog.Logger) (senderservice.Mailer, error) {
	switch cfg.Transport {
	case TransportPostmark:
		return senderservice.NewPostmarkMailer(cfg.PostmarkToken, cfg.From)
	case TransportSMTP, "":
		if cfg.SMTPHost == "" {
			return nil, errors.New("smtp_host is required for smtp transport")
		}
		transport := smtp.NewTransport(cfg, logger)
		return senderservice.NewSMTPMailer(transport, cfg.From, logger), nil
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Transport)
	}
}

// Run потребляет сообщения до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.SubscriptionQueue, consumerWorkers, a.senderService.HandleLifecycle)
	if err != nil {
		a.logger.Error("failed to start subscription queue consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}
