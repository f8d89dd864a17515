package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

const userColumns = `id, email, subscribed, on_trial, subscription_active, subscription_id,
	had_previous_subscription, trial_completed, trial_consumed_days, trial_duration,
	trial_eligibility_reason, trial_end_date, subscription_start_date, last_subscription_date,
	last_cancellation_date, trial_ended_at, subscription_cancelled_at, subscription_suspended_at,
	subscription_verified_at, is_tester, created_at`

// GetUser возвращает пользователя по идентификатору провайдера аутентификации.
func (r *repo) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)

	u := &models.User{}
	var (
		trialEnd, start, lastSub, lastCancel, trialEnded sql.NullTime
		cancelled, suspended, verified                   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Subscribed, &u.OnTrial, &u.SubscriptionActive, &u.SubscriptionID,
		&u.HadPreviousSubscription, &u.TrialCompleted, &u.TrialConsumedDays, &u.TrialDuration,
		&u.TrialEligibilityReason, &trialEnd, &start, &lastSub,
		&lastCancel, &trialEnded, &cancelled, &suspended,
		&verified, &u.IsTester, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u.TrialEndDate = nullTime(trialEnd)
	u.SubscriptionStartDate = nullTime(start)
	u.LastSubscriptionDate = nullTime(lastSub)
	u.LastCancellationDate = nullTime(lastCancel)
	u.TrialEndedAt = nullTime(trialEnded)
	u.SubscriptionCancelledAt = nullTime(cancelled)
	u.SubscriptionSuspendedAt = nullTime(suspended)
	u.SubscriptionVerifiedAt = nullTime(verified)
	return u, nil
}

// SaveUser создаёт или перезаписывает учётную запись.
func (r *repo) SaveUser(ctx context.Context, u *models.User) error {
	const op = "storage.SaveUser"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if u.ID == "" {
		return fmt.Errorf("%s: empty user id", op)
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT INTO users (` + userColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			  ON CONFLICT (id) DO UPDATE SET
			      email = EXCLUDED.email,
			      subscribed = EXCLUDED.subscribed,
			      on_trial = EXCLUDED.on_trial,
			      subscription_active = EXCLUDED.subscription_active,
			      subscription_id = EXCLUDED.subscription_id,
			      had_previous_subscription = EXCLUDED.had_previous_subscription,
			      trial_completed = EXCLUDED.trial_completed,
			      trial_consumed_days = EXCLUDED.trial_consumed_days,
			      trial_duration = EXCLUDED.trial_duration,
			      trial_eligibility_reason = EXCLUDED.trial_eligibility_reason,
			      trial_end_date = EXCLUDED.trial_end_date,
			      subscription_start_date = EXCLUDED.subscription_start_date,
			      last_subscription_date = EXCLUDED.last_subscription_date,
			      last_cancellation_date = EXCLUDED.last_cancellation_date,
			      trial_ended_at = EXCLUDED.trial_ended_at,
			      subscription_cancelled_at = EXCLUDED.subscription_cancelled_at,
			      subscription_suspended_at = EXCLUDED.subscription_suspended_at,
			      subscription_verified_at = EXCLUDED.subscription_verified_at,
			      is_tester = EXCLUDED.is_tester`
	_, err := r.q.ExecContext(ctx, query,
		u.ID, models.NormalizeEmail(u.Email), u.Subscribed, u.OnTrial, u.SubscriptionActive, u.SubscriptionID,
		u.HadPreviousSubscription, u.TrialCompleted, u.TrialConsumedDays, u.TrialDuration,
		u.TrialEligibilityReason, toNullTime(u.TrialEndDate), toNullTime(u.SubscriptionStartDate), toNullTime(u.LastSubscriptionDate),
		toNullTime(u.LastCancellationDate), toNullTime(u.TrialEndedAt), toNullTime(u.SubscriptionCancelledAt), toNullTime(u.SubscriptionSuspendedAt),
		toNullTime(u.SubscriptionVerifiedAt), u.IsTester, createdAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// IsTester проверяет e-mail по списку тестировщиков без учёта регистра.
func (r *repo) IsTester(ctx context.Context, email string) (bool, error) {
	const op = "storage.IsTester"
	if email == "" {
		return false, nil
	}
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM testers WHERE email = lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
