package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
)

// StatusResult — состояние подписки пользователя для отображения и проверки доступа.
type StatusResult struct {
	UserID             string               `json:"user_id"`
	Subscribed         bool                 `json:"subscribed"`
	OnTrial            bool                 `json:"on_trial"`
	SubscriptionActive bool                 `json:"subscription_active"`
	TrialCompleted     bool                 `json:"trial_completed"`
	TrialEndDate       *time.Time           `json:"trial_end_date,omitempty"`
	RemainingTrialDays int                  `json:"remaining_trial_days"`
	Tester             bool                 `json:"tester"`
	FreeAccess         bool                 `json:"free_access"`
	Entitled           bool                 `json:"entitled"`
	Subscription       *models.Subscription `json:"subscription,omitempty"`
}

// Status возвращает состояние подписки пользователя. Результат кешируется до первого изменения.
func (s *Service) Status(ctx context.Context, sess session.Session) (*StatusResult, error) {
	const op = "subscription.Status"

	log := s.log.With(slog.String("op", op), slog.String("user_id", sess.UserID))

	key := statusCacheKey(sess.UserID)
	var cached StatusResult
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		log.Warn("failed to read status cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.ensureUser(ctx, s.store, sess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tester, err := s.store.IsTester(ctx, emailOf(user, sess))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.currentRecord(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	res := &StatusResult{
		UserID:             user.ID,
		Subscribed:         user.Subscribed,
		OnTrial:            user.OnTrial,
		SubscriptionActive: user.SubscriptionActive,
		TrialCompleted:     user.TrialCompleted,
		TrialEndDate:       user.TrialEndDate,
		RemainingTrialDays: RemainingTrialDays(now, user.TrialEndDate),
		Tester:             tester || user.IsTester,
		FreeAccess:         s.opts.FreeAccess,
		Subscription:       current,
	}
	if !user.OnTrial {
		res.RemainingTrialDays = 0
	}
	trialValid := user.OnTrial && user.TrialEndDate != nil && user.TrialEndDate.After(now)
	res.Entitled = res.FreeAccess || res.Tester ||
		(user.Subscribed && user.SubscriptionActive && (!user.OnTrial || trialValid))

	if err := s.cache.Set(key, res, statusTTL(now, s.opts.StatusTTL, trialValid, user.TrialEndDate)); err != nil {
		log.Warn("failed to cache status", sl.Err(err))
	}
	return res, nil
}

func (s *Service) currentRecord(ctx context.Context, user *models.User) (*models.Subscription, error) {
	if user.SubscriptionID != "" {
		rec, err := s.store.GetSubscription(ctx, user.SubscriptionID)
		switch {
		case err == nil:
			return rec, nil
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}
	current, err := s.store.ListSubscriptions(ctx, user.ID, models.CurrentStatuses...)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, nil
	}
	return current[0], nil
}

// statusTTL ограничивает срок кеширования моментом окончания действующего триала.
func statusTTL(now time.Time, ttl time.Duration, trialValid bool, trialEnd *time.Time) time.Duration {
	if !trialValid || trialEnd == nil {
		return ttl
	}
	if left := trialEnd.Sub(now); left < ttl {
		return left
	}
	return ttl
}
