package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

// Результаты обработки вебхука для метрик.
const (
	WebhookApplied   = "applied"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
	WebhookNoop      = "noop"
	WebhookMissing   = "missing_record"
	WebhookStale     = "stale"
	WebhookRejected  = "invalid_transition"
	WebhookFailed    = "failed"
)

var webhookTargets = map[string]models.Status{
	models.WebhookSubscriptionActivated: models.StatusActive,
	models.WebhookSubscriptionCancelled: models.StatusCancelled,
	models.WebhookSubscriptionSuspended: models.StatusSuspended,
}

var webhookRoutingKeys = map[models.Status]string{
	models.StatusActive:    models.LifecycleActivated,
	models.StatusCancelled: models.LifecycleCancelled,
	models.StatusSuspended: models.LifecycleSuspended,
}

// HandleWebhook применяет событие шлюза к записи подписки и учётной записи.
// Отсутствующая запись, устаревшее событие и недопустимый переход логируются и не считаются ошибкой.
// Ошибка возвращается только при сбое хранилища, чтобы шлюз повторил доставку.
func (s *Service) HandleWebhook(ctx context.Context, ev models.WebhookEvent) error {
	const op = "subscription.HandleWebhook"

	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", ev.ID),
		slog.String("event_type", ev.Type),
		slog.String("subscription_id", ev.SubscriptionID),
	)

	target, tracked := webhookTargets[ev.Type]
	switch {
	case ev.Type == models.WebhookSubscriptionCreated:
		log.Info("subscription created event received")
		s.metrics.RecordWebhookEvent(ev.Type, WebhookNoop)
		return nil
	case ev.Type == models.WebhookPaymentSaleCompleted:
		log.Info("payment completed event received")
		s.auditPayment(ctx, log, ev)
		s.metrics.RecordWebhookEvent(ev.Type, WebhookNoop)
		return nil
	case !tracked:
		log.Info("ignored webhook event")
		s.metrics.RecordWebhookEvent(ev.Type, WebhookIgnored)
		return nil
	}

	if ev.SubscriptionID == "" {
		log.Warn("webhook event without subscription id")
		s.metrics.RecordWebhookEvent(ev.Type, WebhookMissing)
		return nil
	}

	if ev.ID != "" {
		first, err := s.cache.SetNX(webhookCacheKey(ev.ID), ev.Type, s.opts.WebhookTTL)
		switch {
		case err != nil:
			log.Warn("failed to deduplicate webhook event", sl.Err(err))
		case !first:
			log.Info("duplicate webhook event skipped")
			s.metrics.RecordWebhookEvent(ev.Type, WebhookDuplicate)
			return nil
		}
	}

	msg, changed, err := s.applyWebhook(ctx, ev, target)
	switch {
	case err == nil && !changed:
		log.Info("webhook event already applied")
		s.metrics.RecordWebhookEvent(ev.Type, WebhookNoop)
		return nil
	case err == nil && msg == nil:
		log.Info("webhook event applied to a previous subscription", slog.String("status", string(target)))
		s.metrics.RecordWebhookEvent(ev.Type, WebhookApplied)
		return nil
	case err == nil:
		log.Info("webhook event applied", slog.String("status", string(target)))
		s.metrics.RecordWebhookEvent(ev.Type, WebhookApplied)
		s.afterChange(ctx, webhookRoutingKeys[target], *msg)
		return nil
	case errors.Is(err, models.ErrInconsistentState):
		log.Warn("no local subscription for webhook event")
		s.metrics.RecordWebhookEvent(ev.Type, WebhookMissing)
		return nil
	case errors.Is(err, models.ErrStaleEvent):
		log.Warn("stale webhook event skipped")
		s.metrics.RecordWebhookEvent(ev.Type, WebhookStale)
		return nil
	case errors.Is(err, models.ErrInvalidTransition):
		log.Warn("webhook event rejected by transition table", sl.Err(err))
		s.metrics.RecordWebhookEvent(ev.Type, WebhookRejected)
		return nil
	case errors.Is(err, models.ErrActiveSubscriptionExists):
		log.Warn("webhook reactivation rejected, user has another current subscription", sl.Err(err))
		s.metrics.RecordWebhookEvent(ev.Type, WebhookRejected)
		return nil
	}

	if ev.ID != "" {
		if cErr := s.cache.Invalidate(webhookCacheKey(ev.ID)); cErr != nil {
			log.Warn("failed to release webhook dedupe key", sl.Err(cErr))
		}
	}
	log.Error("failed to apply webhook event", sl.Err(err))
	s.metrics.RecordWebhookEvent(ev.Type, WebhookFailed)
	return fmt.Errorf("%s: %w", op, err)
}

// applyWebhook переводит запись в состояние target. changed сообщает, изменилась ли запись.
// Учётная запись меняется, только если запись является текущей подпиской пользователя;
// для прежних подписок сообщение не формируется.
func (s *Service) applyWebhook(ctx context.Context, ev models.WebhookEvent, target models.Status) (*models.LifecycleMessage, bool, error) {
	var (
		msg     *models.LifecycleMessage
		changed bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, repo storage.Repository) error {
		rec, err := repo.GetSubscription(ctx, ev.SubscriptionID)
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInconsistentState
		}
		if err != nil {
			return err
		}
		if !ev.OccurredAt.IsZero() && rec.LastEventAt != nil && ev.OccurredAt.Before(*rec.LastEventAt) {
			return models.ErrStaleEvent
		}
		if rec.Status == target {
			return nil
		}
		if !CanTransition(rec.Status, target) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, rec.Status, target)
		}

		user, err := repo.GetUser(ctx, rec.UserID)
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInconsistentState
		}
		if err != nil {
			return err
		}

		// Активированная запись единственная текущая у пользователя: иначе её
		// сохранение отклонит уникальный индекс, поэтому она становится текущей.
		owned := user.SubscriptionID == "" || user.SubscriptionID == rec.ID || target == models.StatusActive

		now := s.now()
		from := rec.Status
		switch target {
		case models.StatusActive:
			if from == models.StatusTrial {
				rec.TrialEndedAt = models.TimePtr(now)
				user.TrialEndedAt = models.TimePtr(now)
			}
			user.SubscriptionID = rec.ID
			user.Subscribed = true
			user.OnTrial = false
			user.SubscriptionActive = true
		case models.StatusCancelled:
			consumed, completed := s.freezeTrial(rec, user)
			rec.CancelledAt = models.TimePtr(now)
			rec.TrialConsumedDays = models.IntPtr(consumed)
			if owned {
				user.Subscribed = false
				user.SubscriptionActive = false
				user.OnTrial = false
				user.SubscriptionCancelledAt = models.TimePtr(now)
				user.LastCancellationDate = models.TimePtr(now)
				user.TrialConsumedDays = consumed
				user.TrialCompleted = completed
			}
		case models.StatusSuspended:
			rec.SuspendedAt = models.TimePtr(now)
			if owned {
				user.SubscriptionActive = false
				user.SubscriptionSuspendedAt = models.TimePtr(now)
			}
		}
		rec.Status = target
		rec.UpdatedAt = now
		if !ev.OccurredAt.IsZero() {
			rec.LastEventAt = models.TimePtr(ev.OccurredAt)
		}
		if err := repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}
		if owned {
			user.Normalize()
			if err := repo.SaveUser(ctx, user); err != nil {
				return err
			}
		}
		entry := s.event(user.ID, rec.ID, models.EventWebhookApplied, map[string]any{
			"event_id":   ev.ID,
			"event_type": ev.Type,
			"from":       string(from),
			"to":         string(target),
			"current":    owned,
		})
		if err := repo.AppendEvent(ctx, entry); err != nil {
			return err
		}

		changed = true
		if owned {
			msg = &models.LifecycleMessage{
				UserID:         user.ID,
				Email:          user.Email,
				SubscriptionID: rec.ID,
				Status:         target,
				OnTrial:        user.OnTrial,
			}
		}
		return nil
	})
	return msg, changed, err
}

func (s *Service) auditPayment(ctx context.Context, log *slog.Logger, ev models.WebhookEvent) {
	if ev.SubscriptionID == "" {
		return
	}
	rec, err := s.store.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn("failed to load subscription for payment event", sl.Err(err))
		}
		return
	}
	e := s.event(rec.UserID, rec.ID, models.EventWebhookApplied, map[string]any{
		"event_id":   ev.ID,
		"event_type": ev.Type,
	})
	if err := s.store.AppendEvent(ctx, e); err != nil {
		log.Warn("failed to append payment event", sl.Err(err))
	}
}
