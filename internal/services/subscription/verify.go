package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/paymentprovider"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

// VerifiedSubscription — подписка в том виде, в каком её вернул шлюз.
type VerifiedSubscription struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	StartTime       *time.Time `json:"start_time"`
	NextBillingTime *time.Time `json:"next_billing_time"`
}

// VerifyResult — итог сверки подписки со шлюзом.
type VerifyResult struct {
	Success      bool                 `json:"success"`
	Status       string               `json:"status"`
	Subscription VerifiedSubscription `json:"subscription"`
}

// Verify запрашивает подписку в шлюзе и приводит к её состоянию локальную запись и учётную запись.
func (s *Service) Verify(ctx context.Context, subscriptionID string) (*VerifyResult, error) {
	const op = "subscription.Verify"

	log := s.log.With(slog.String("op", op), slog.String("subscription_id", subscriptionID))

	if s.gateway == nil {
		return nil, fmt.Errorf("%s: %w", op, &models.GatewayError{Op: "verify", Message: "payment gateway is not configured"})
	}

	gwSub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		s.metrics.RecordGatewayError("verify")
		log.Error("failed to fetch subscription from gateway", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		msg     *models.LifecycleMessage
		changed bool
	)
	err = s.store.InTx(ctx, func(ctx context.Context, repo storage.Repository) error {
		rec, err := repo.GetSubscription(ctx, subscriptionID)
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInconsistentState
		}
		if err != nil {
			return err
		}
		user, err := repo.GetUser(ctx, rec.UserID)
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInconsistentState
		}
		if err != nil {
			return err
		}

		now := s.now()
		from := rec.Status
		target := reconcileStatus(now, rec, gwSub.Status)
		if target != from && !CanTransition(from, target) {
			log.Warn("gateway status conflicts with local state",
				slog.String("local", string(from)), slog.String("gateway", gwSub.Status))
			target = from
		}

		if target != from {
			changed = true
			switch target {
			case models.StatusActive:
				if from == models.StatusTrial {
					rec.TrialEndedAt = models.TimePtr(now)
					user.TrialEndedAt = models.TimePtr(now)
				}
			case models.StatusCancelled:
				consumed, completed := s.freezeTrial(rec, user)
				rec.CancelledAt = models.TimePtr(now)
				rec.TrialConsumedDays = models.IntPtr(consumed)
				user.TrialConsumedDays = consumed
				user.TrialCompleted = completed
				user.LastCancellationDate = models.TimePtr(now)
				user.SubscriptionCancelledAt = models.TimePtr(now)
			case models.StatusSuspended:
				rec.SuspendedAt = models.TimePtr(now)
				user.SubscriptionSuspendedAt = models.TimePtr(now)
			}
			rec.Status = target
		}
		rec.GatewayStatus = gwSub.Status
		rec.LastVerifiedAt = models.TimePtr(now)
		rec.UpdatedAt = now
		if err := repo.SaveSubscription(ctx, rec); err != nil {
			return err
		}

		if user.SubscriptionID == "" || user.SubscriptionID == rec.ID {
			applyUserFlags(user, rec.Status)
		}
		user.SubscriptionVerifiedAt = models.TimePtr(now)
		user.Normalize()
		if err := repo.SaveUser(ctx, user); err != nil {
			return err
		}

		entry := s.event(user.ID, rec.ID, models.EventVerified, map[string]any{
			"gateway_status": gwSub.Status,
			"from":           string(from),
			"to":             string(rec.Status),
		})
		if err := repo.AppendEvent(ctx, entry); err != nil {
			return err
		}
		msg = &models.LifecycleMessage{
			UserID:         user.ID,
			Email:          user.Email,
			SubscriptionID: rec.ID,
			Status:         rec.Status,
			OnTrial:        user.OnTrial,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInconsistentState) {
			log.Warn("no local subscription for verified gateway subscription")
		} else {
			log.Error("failed to reconcile subscription", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if key, ok := webhookRoutingKeys[msg.Status]; ok && changed {
		s.afterChange(ctx, key, *msg)
	} else if err := s.cache.Invalidate(statusCacheKey(msg.UserID)); err != nil {
		log.Warn("failed to invalidate status cache", sl.Err(err))
	}
	log.Info("subscription verified", slog.String("gateway_status", gwSub.Status), slog.String("status", string(msg.Status)))

	return &VerifyResult{
		Success: true,
		Status:  gwSub.Status,
		Subscription: VerifiedSubscription{
			ID:              gwSub.ID,
			Status:          gwSub.Status,
			StartTime:       gwSub.StartTime,
			NextBillingTime: gwSub.NextBillingTime(),
		},
	}, nil
}

// reconcileStatus переводит статус шлюза в локальное состояние.
// ACTIVE не завершает ещё идущий триал; статусы ожидания подтверждения состояние не меняют.
func reconcileStatus(now time.Time, rec *models.Subscription, gatewayStatus string) models.Status {
	switch gatewayStatus {
	case paymentprovider.StatusActive:
		if rec.Status == models.StatusTrial && rec.TrialEndDate != nil && rec.TrialEndDate.After(now) {
			return models.StatusTrial
		}
		return models.StatusActive
	case paymentprovider.StatusSuspended:
		return models.StatusSuspended
	case paymentprovider.StatusCancelled, paymentprovider.StatusExpired:
		return models.StatusCancelled
	default:
		return rec.Status
	}
}

func applyUserFlags(user *models.User, status models.Status) {
	switch status {
	case models.StatusTrial:
		user.Subscribed = true
		user.OnTrial = true
		user.SubscriptionActive = true
	case models.StatusActive:
		user.Subscribed = true
		user.OnTrial = false
		user.SubscriptionActive = true
	case models.StatusSuspended:
		user.SubscriptionActive = false
	case models.StatusCancelled:
		user.Subscribed = false
		user.OnTrial = false
		user.SubscriptionActive = false
	}
}
