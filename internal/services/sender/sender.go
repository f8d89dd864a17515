// Package sender обрабатывает сообщения о жизненном цикле подписки
// и отправляет пользователю письма: начало триала, отмена, приостановка.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

// SenderService превращает сообщения брокера в письма.
type SenderService struct {
	mailer Mailer
	log    *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(mailer Mailer, log *slog.Logger) *SenderService {
	return &SenderService{mailer: mailer, log: log}
}

// HandleLifecycle разбирает сообщение и отправляет письмо, если для его типа есть шаблон.
// Сообщения без адреса и без шаблона подтверждаются без отправки.
func (s *SenderService) HandleLifecycle(routingKey string, body []byte) error {
	const op = "sender.HandleLifecycle"
	log := s.log.With(slog.String("op", op), slog.String("routing_key", routingKey))

	var msg models.LifecycleMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if msg.Type == "" {
		msg.Type = routingKey
	}
	log = log.With(slog.String("user_id", msg.UserID), slog.String("subscription_id", msg.SubscriptionID))

	if msg.Email == "" {
		log.Warn("lifecycle message without email, skipping")
		return nil
	}
	mail, ok := Compose(msg)
	if !ok {
		log.Debug("no template for lifecycle message")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.mailer.Send(ctx, mail); err != nil {
		log.Error("failed to send email", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("email sent successfully", slog.String("tag", mail.Tag))
	return nil
}
