package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

const defaultCancelReason = "User requested cancellation"

// CancelResult — итог отмены с зафиксированными данными о триале.
type CancelResult struct {
	SubscriptionID    string `json:"subscription_id,omitempty"`
	TrialConsumedDays int    `json:"trial_consumed_days"`
	TrialCompleted    bool   `json:"trial_completed"`
	AlreadyCancelled  bool   `json:"already_cancelled,omitempty"`
	Tester            bool   `json:"tester,omitempty"`
	Warning           string `json:"warning,omitempty"`
}

// Cancel отменяет подписку пользователя: сначала в шлюзе, затем локально.
// Локальная отмена выполняется и при ошибке шлюза, запись получает пометку cancellationNote.
// Пустой subscriptionID означает текущую подписку пользователя.
func (s *Service) Cancel(ctx context.Context, sess session.Session, subscriptionID, reason string) (*CancelResult, error) {
	const op = "subscription.Cancel"

	log := s.log.With(slog.String("op", op), slog.String("user_id", sess.UserID))

	user, err := s.ensureUser(ctx, s.store, sess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tester, err := s.store.IsTester(ctx, emailOf(user, sess))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tester || user.IsTester {
		log.Info("tester cancellation ignored")
		return &CancelResult{Tester: true, Warning: models.ErrTesterCannotCancel.Error()}, nil
	}

	if subscriptionID == "" {
		subscriptionID = user.SubscriptionID
	}
	if subscriptionID == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	log = log.With(slog.String("subscription_id", subscriptionID))

	rec, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec.UserID != user.ID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	if rec.Status == models.StatusCancelled {
		return alreadyCancelled(rec, user), nil
	}

	var note string
	if s.gateway != nil {
		if reason == "" {
			reason = defaultCancelReason
		}
		if err := s.gateway.CancelSubscription(ctx, subscriptionID, reason); err != nil {
			s.metrics.RecordGatewayError("cancel")
			log.Warn("gateway cancellation failed, cancelling locally", sl.Err(err))
			note = "gateway cancellation failed: " + err.Error()
		}
	}

	var result *CancelResult
	err = s.store.InTx(ctx, func(ctx context.Context, repo storage.Repository) error {
		rec, err := repo.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		user, err := repo.GetUser(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if rec.Status == models.StatusCancelled {
			result = alreadyCancelled(rec, user)
			return nil
		}

		now := s.now()
		consumed, completed := s.freezeTrial(rec, user)

		rec.Status = models.StatusCancelled
		rec.CancelledAt = models.TimePtr(now)
		rec.TrialConsumedDays = models.IntPtr(consumed)
		rec.CancellationNote = note
		rec.UpdatedAt = now
		if err := repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}

		// Отмена прежней подписки не трогает флаги текущей.
		if user.SubscriptionID == "" || user.SubscriptionID == rec.ID {
			user.Subscribed = false
			user.OnTrial = false
			user.SubscriptionActive = false
			user.TrialCompleted = completed
			user.TrialConsumedDays = consumed
			user.LastCancellationDate = models.TimePtr(now)
			user.SubscriptionCancelledAt = models.TimePtr(now)
			user.Normalize()
			if err := repo.SaveUser(ctx, user); err != nil {
				return err
			}
		}

		details := map[string]any{
			"trial_consumed_days": consumed,
			"trial_completed":     completed,
			"reason":              reason,
		}
		if note != "" {
			details["note"] = note
		}
		if err := repo.AppendEvent(ctx, s.event(user.ID, rec.ID, models.EventSubscriptionCancelled, details)); err != nil {
			return err
		}

		result = &CancelResult{SubscriptionID: rec.ID, TrialConsumedDays: consumed, TrialCompleted: completed}
		if note != "" {
			result.Warning = "subscription cancelled locally, payment provider cancellation failed"
		}
		return nil
	})
	if err != nil {
		log.Error("failed to cancel subscription", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if result.AlreadyCancelled {
		return result, nil
	}

	log.Info("subscription cancelled",
		slog.Int("trial_consumed_days", result.TrialConsumedDays),
		slog.Bool("trial_completed", result.TrialCompleted),
	)
	s.metrics.RecordCancellation(note != "")
	s.afterChange(ctx, models.LifecycleCancelled, models.LifecycleMessage{
		UserID:         user.ID,
		Email:          emailOf(user, sess),
		SubscriptionID: subscriptionID,
		Status:         models.StatusCancelled,
		Note:           note,
	})
	return result, nil
}

// freezeTrial вычисляет израсходованные дни триала и признак его завершения на момент отмены.
// Для триала, продолженного после прошлой отмены, учитываются ранее израсходованные дни.
func (s *Service) freezeTrial(rec *models.Subscription, user *models.User) (int, bool) {
	now := s.now()
	start := rec.StartDate
	if start.IsZero() && user.SubscriptionStartDate != nil {
		start = *user.SubscriptionStartDate
	}
	trialEnd := rec.TrialEndDate
	if trialEnd == nil && rec.ID == user.SubscriptionID {
		trialEnd = user.TrialEndDate
	}

	consumed := ConsumedTrialDays(now, start, trialEnd)
	if trialEnd != nil && rec.TrialDuration > 0 && rec.TrialDuration < models.TrialLengthDays {
		consumed = models.ClampTrialDays(consumed + models.TrialLengthDays - rec.TrialDuration)
	}
	return consumed, TrialCompleted(now, trialEnd)
}

func alreadyCancelled(rec *models.Subscription, user *models.User) *CancelResult {
	res := &CancelResult{
		SubscriptionID:    rec.ID,
		TrialConsumedDays: user.TrialConsumedDays,
		TrialCompleted:    user.TrialCompleted,
		AlreadyCancelled:  true,
	}
	if rec.TrialConsumedDays != nil {
		res.TrialConsumedDays = *rec.TrialConsumedDays
	}
	return res
}
