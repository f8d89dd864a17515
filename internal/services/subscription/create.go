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
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

// CheckoutResult — результат подтверждения подписки плательщиком на стороне шлюза.
type CheckoutResult struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	OrderID        string `json:"order_id,omitempty"`
	Plan           string `json:"plan,omitempty"`
}

// ResubscribeRequest — запрос на повторное оформление подписки.
type ResubscribeRequest struct {
	Plan              string `json:"plan,omitempty"`
	OldSubscriptionID string `json:"old_subscription_id,omitempty"`
}

// CreateResult описывает созданную подписку.
type CreateResult struct {
	SubscriptionID string        `json:"subscription_id,omitempty"`
	Status         models.Status `json:"status,omitempty"`
	OnTrial        bool          `json:"on_trial"`
	TrialEndDate   *time.Time    `json:"trial_end_date,omitempty"`
	TrialDuration  int           `json:"trial_duration"`
	TrialReason    string        `json:"trial_reason,omitempty"`
	Tester         bool          `json:"tester,omitempty"`
}

// ResubscribeResult описывает повторно оформленную подписку.
type ResubscribeResult struct {
	CreateResult
	PreviousSubscriptionID string `json:"previous_subscription_id,omitempty"`
	ApprovalURL            string `json:"approval_url,omitempty"`
	GatewayStatus          string `json:"gateway_status,omitempty"`
}

type recordParams struct {
	ID                     string
	PreviousSubscriptionID string
	OrderID                string
	Plan                   string
	Fingerprint            string
	Event                  models.EventType
}

// Create сохраняет подписку, оформленную пользователем на стороне шлюза.
// Запись подписки и учётная запись изменяются в одной транзакции.
func (s *Service) Create(ctx context.Context, sess session.Session, checkout CheckoutResult, fingerprint string) (*CreateResult, error) {
	const op = "subscription.Create"

	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", sess.UserID),
		slog.String("subscription_id", checkout.SubscriptionID),
	)

	if checkout.SubscriptionID == "" {
		return nil, fmt.Errorf("%s: empty subscription id", op)
	}

	s.checkFingerprint(ctx, sess.UserID, checkout.SubscriptionID, fingerprint)

	var result *CreateResult
	err := s.store.InTx(ctx, func(ctx context.Context, repo storage.Repository) error {
		user, err := s.ensureUser(ctx, repo, sess)
		if err != nil {
			return err
		}
		tester, err := s.grantTesterAccess(ctx, repo, user, sess.Email)
		if err != nil {
			return err
		}
		if tester {
			result = &CreateResult{Tester: true, TrialReason: ReasonTester}
			return nil
		}
		result, err = s.persist(ctx, repo, user, recordParams{
			ID:          checkout.SubscriptionID,
			OrderID:     checkout.OrderID,
			Plan:        checkout.Plan,
			Fingerprint: fingerprint,
			Event:       models.EventSubscriptionCreated,
		})
		return err
	})
	if err != nil {
		err = s.withExisting(ctx, log, sess.UserID, err)
		s.logRejected(ctx, log, sess.UserID, checkout.SubscriptionID, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if result.Tester {
		log.Info("tester access granted")
		s.afterChange(ctx, models.LifecycleCreated, models.LifecycleMessage{UserID: sess.UserID, Email: sess.Email, Status: models.StatusActive})
		return result, nil
	}

	log.Info("subscription created", slog.String("status", string(result.Status)), slog.Int("trial_duration", result.TrialDuration))
	s.metrics.RecordSubscriptionCreated(string(result.Status))
	s.afterChange(ctx, models.LifecycleCreated, lifecycleMessage(sess, result))
	return result, nil
}

// Resubscribe создаёт новую подписку в шлюзе для пользователя, у которого нет текущей подписки,
// и сохраняет её со ссылкой на предыдущую.
func (s *Service) Resubscribe(ctx context.Context, sess session.Session, req ResubscribeRequest, fingerprint string) (*ResubscribeResult, error) {
	const op = "subscription.Resubscribe"

	log := s.log.With(slog.String("op", op), slog.String("user_id", sess.UserID))

	if s.gateway == nil {
		return nil, fmt.Errorf("%s: %w", op, &models.GatewayError{Op: "create", Message: "payment gateway is not configured"})
	}

	user, err := s.ensureUser(ctx, s.store, sess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tester, err := s.store.IsTester(ctx, emailOf(user, sess))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tester || user.IsTester {
		res, err := s.Create(ctx, sess, CheckoutResult{SubscriptionID: "tester:" + user.ID}, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &ResubscribeResult{CreateResult: *res}, nil
	}

	current, err := s.store.ListSubscriptions(ctx, user.ID, models.CurrentStatuses...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(current) > 0 {
		err := duplicateError(current)
		s.logRejected(ctx, log, user.ID, "", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	previousID := req.OldSubscriptionID
	if previousID == "" {
		previousID = user.SubscriptionID
	}

	gwSub, err := s.gateway.CreateSubscription(ctx, paymentprovider.CreateSubscriptionRequest{
		PlanID:     s.opts.PlanID,
		CustomID:   user.ID,
		Subscriber: &paymentprovider.Subscriber{EmailAddress: emailOf(user, sess)},
		ApplicationContext: paymentprovider.ApplicationContext{
			BrandName:          s.opts.BrandName,
			Locale:             "en-GB",
			ShippingPreference: "NO_SHIPPING",
			UserAction:         "SUBSCRIBE_NOW",
			ReturnURL:          s.opts.ReturnURL,
			CancelURL:          s.opts.CancelURL,
		},
	})
	if err != nil {
		s.metrics.RecordGatewayError("create")
		log.Error("failed to create gateway subscription", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.String("subscription_id", gwSub.ID))

	var created *CreateResult
	err = s.store.InTx(ctx, func(ctx context.Context, repo storage.Repository) error {
		user, err := repo.GetUser(ctx, sess.UserID)
		if err != nil {
			return err
		}
		created, err = s.persist(ctx, repo, user, recordParams{
			ID:                     gwSub.ID,
			PreviousSubscriptionID: previousID,
			Plan:                   req.Plan,
			Fingerprint:            fingerprint,
			Event:                  models.EventResubscribed,
		})
		return err
	})
	if err != nil {
		log.Error("gateway subscription created but not stored", sl.Err(err))
		err = s.withExisting(ctx, log, user.ID, err)
		s.logRejected(ctx, log, user.ID, gwSub.ID, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("resubscribed", slog.String("previous_subscription_id", previousID), slog.Int("trial_duration", created.TrialDuration))
	s.metrics.RecordSubscriptionCreated(string(created.Status))
	s.afterChange(ctx, models.LifecycleResubscribe, lifecycleMessage(sess, created))

	return &ResubscribeResult{
		CreateResult:           *created,
		PreviousSubscriptionID: previousID,
		ApprovalURL:            gwSub.ApproveLink(),
		GatewayStatus:          gwSub.Status,
	}, nil
}

// persist проверяет отсутствие текущей подписки, вычисляет право на триал
// и записывает запись подписки и учётную запись через repo.
func (s *Service) persist(ctx context.Context, repo storage.Repository, user *models.User, p recordParams) (*CreateResult, error) {
	current, err := repo.ListSubscriptions(ctx, user.ID, models.CurrentStatuses...)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 {
		return nil, duplicateError(current)
	}

	cancelled, err := repo.ListSubscriptions(ctx, user.ID, models.StatusCancelled)
	if err != nil {
		return nil, err
	}

	now := s.now()
	elig := DetermineTrialEligibility(now, user, cancelled)

	plan := p.Plan
	if plan == "" {
		plan = s.opts.Plan
	}
	rec := &models.Subscription{
		ID:                     p.ID,
		UserID:                 user.ID,
		PreviousSubscriptionID: p.PreviousSubscriptionID,
		OrderID:                p.OrderID,
		Status:                 models.StatusActive,
		Plan:                   plan,
		Price:                  s.opts.Price,
		Currency:               s.opts.Currency,
		PaymentMethod:          s.opts.PaymentMethod,
		StartDate:              now,
		TrialDuration:          elig.Duration,
		TrialEligibilityReason: elig.Reason,
		DeviceFingerprint:      p.Fingerprint,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if elig.Eligible {
		rec.Status = models.StatusTrial
		rec.TrialEndDate = models.TimePtr(elig.EndDate)
	}

	existing, err := repo.GetSubscription(ctx, p.ID)
	switch {
	case err == nil && existing.UserID != user.ID:
		return nil, fmt.Errorf("subscription %s belongs to another user: %w", p.ID, models.ErrInconsistentState)
	case err == nil:
		rec.CreatedAt = existing.CreatedAt
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	if err := repo.SaveSubscription(ctx, rec); err != nil {
		if errors.Is(err, models.ErrActiveSubscriptionExists) {
			// Транзакция после нарушения индекса может быть прервана, список читается в withExisting.
			return nil, &models.DuplicateSubscriptionError{}
		}
		return nil, err
	}

	user.Subscribed = true
	user.SubscriptionActive = true
	user.SubscriptionID = rec.ID
	user.OnTrial = elig.Eligible
	user.TrialEndDate = rec.TrialEndDate
	user.TrialDuration = elig.Duration
	user.TrialEligibilityReason = elig.Reason
	user.HadPreviousSubscription = true
	user.SubscriptionStartDate = models.TimePtr(now)
	user.LastSubscriptionDate = models.TimePtr(now)
	if elig.Duration == models.TrialLengthDays {
		user.TrialCompleted = false
		user.TrialConsumedDays = 0
	}
	user.Normalize()
	if err := repo.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	details := map[string]any{
		"status":         string(rec.Status),
		"trial_duration": elig.Duration,
		"trial_reason":   elig.Reason,
		"plan":           rec.Plan,
	}
	if rec.PreviousSubscriptionID != "" {
		details["previous_subscription_id"] = rec.PreviousSubscriptionID
	}
	if err := repo.AppendEvent(ctx, s.event(user.ID, rec.ID, p.Event, details)); err != nil {
		return nil, err
	}

	return &CreateResult{
		SubscriptionID: rec.ID,
		Status:         rec.Status,
		OnTrial:        elig.Eligible,
		TrialEndDate:   rec.TrialEndDate,
		TrialDuration:  elig.Duration,
		TrialReason:    elig.Reason,
	}, nil
}

// grantTesterAccess выдаёт тестировщику безлимитный доступ без записи подписки.
func (s *Service) grantTesterAccess(ctx context.Context, repo storage.Repository, user *models.User, sessionEmail string) (bool, error) {
	tester, err := repo.IsTester(ctx, emailOf(user, session.Session{Email: sessionEmail}))
	if err != nil {
		return false, err
	}
	if !tester && !user.IsTester {
		return false, nil
	}

	user.IsTester = true
	user.Subscribed = true
	user.SubscriptionActive = true
	user.OnTrial = false
	user.Normalize()
	if err := repo.SaveUser(ctx, user); err != nil {
		return false, err
	}
	return true, repo.AppendEvent(ctx, s.event(user.ID, "", models.EventTesterAccess, map[string]any{"email": user.Email}))
}

// checkFingerprint отмечает в журнале совпадение отпечатка устройства с чужой текущей подпиской.
// На право на триал совпадение не влияет.
func (s *Service) checkFingerprint(ctx context.Context, userID, subscriptionID, fingerprint string) {
	if fingerprint == "" {
		return
	}
	log := s.log.With(slog.String("op", "subscription.checkFingerprint"), slog.String("user_id", userID))

	matches, err := s.store.FindByFingerprint(ctx, fingerprint, models.CurrentStatuses...)
	if err != nil {
		log.Warn("failed to check device fingerprint", sl.Err(err))
		return
	}
	var others []string
	for _, m := range matches {
		if m.UserID != userID {
			others = append(others, m.UserID)
		}
	}
	if len(others) == 0 {
		return
	}

	log.Warn("device fingerprint already used by another subscription", slog.Int("matches", len(others)))
	ev := s.event(userID, subscriptionID, models.EventSuspiciousFingerprint, map[string]any{
		"fingerprint": fingerprint,
		"other_users": others,
	})
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		log.Warn("failed to append security event", sl.Err(err))
	}
}

// logRejected пишет в журнал попытку оформить вторую подписку.
func (s *Service) logRejected(ctx context.Context, log *slog.Logger, userID, subscriptionID string, err error) {
	var dup *models.DuplicateSubscriptionError
	if !errors.As(err, &dup) {
		log.Error("failed to store subscription", sl.Err(err))
		return
	}
	log.Info("duplicate subscription attempt", slog.Int("existing", len(dup.Existing)))
	ev := s.event(userID, subscriptionID, models.EventDuplicateAttempt, map[string]any{"existing": len(dup.Existing)})
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		log.Warn("failed to append event", sl.Err(err))
	}
}

// withExisting дополняет пустую ошибку дубликата текущими подписками пользователя,
// прочитанными вне транзакции.
func (s *Service) withExisting(ctx context.Context, log *slog.Logger, userID string, err error) error {
	var dup *models.DuplicateSubscriptionError
	if !errors.As(err, &dup) || len(dup.Existing) > 0 {
		return err
	}
	current, lErr := s.store.ListSubscriptions(ctx, userID, models.CurrentStatuses...)
	if lErr != nil {
		log.Warn("failed to list existing subscriptions", sl.Err(lErr))
		return err
	}
	for _, c := range current {
		dup.Existing = append(dup.Existing, c.Summary())
	}
	return err
}

func duplicateError(current []*models.Subscription) error {
	existing := make([]models.ExistingSubscription, 0, len(current))
	for _, c := range current {
		existing = append(existing, c.Summary())
	}
	return &models.DuplicateSubscriptionError{Existing: existing}
}

func emailOf(user *models.User, sess session.Session) string {
	if user.Email != "" {
		return user.Email
	}
	return sess.Email
}

func lifecycleMessage(sess session.Session, r *CreateResult) models.LifecycleMessage {
	return models.LifecycleMessage{
		UserID:         sess.UserID,
		Email:          sess.Email,
		SubscriptionID: r.SubscriptionID,
		Status:         r.Status,
		OnTrial:        r.OnTrial,
		TrialDuration:  r.TrialDuration,
		TrialEndDate:   r.TrialEndDate,
	}
}
