package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

const subscriptionColumns = `id, user_id, previous_subscription_id, order_id, status, plan, price,
	currency, payment_method, start_date, trial_end_date, trial_duration, trial_eligibility_reason,
	trial_consumed_days, cancelled_at, suspended_at, trial_ended_at, cancellation_note,
	gateway_status, last_verified_at, last_event_at, device_fingerprint, created_at, updated_at`

const subscriptionOrder = ` ORDER BY cancelled_at DESC NULLS LAST, start_date DESC, id`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var (
		status                                     string
		trialEnd, cancelled, suspended, trialEnded sql.NullTime
		verified, lastEvent                        sql.NullTime
		consumed                                   sql.NullInt64
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PreviousSubscriptionID, &sub.OrderID, &status, &sub.Plan, &sub.Price,
		&sub.Currency, &sub.PaymentMethod, &sub.StartDate, &trialEnd, &sub.TrialDuration, &sub.TrialEligibilityReason,
		&consumed, &cancelled, &suspended, &trialEnded, &sub.CancellationNote,
		&sub.GatewayStatus, &verified, &lastEvent, &sub.DeviceFingerprint, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.Status = models.Status(status)
	sub.StartDate = sub.StartDate.UTC()
	sub.TrialEndDate = nullTime(trialEnd)
	sub.CancelledAt = nullTime(cancelled)
	sub.SuspendedAt = nullTime(suspended)
	sub.TrialEndedAt = nullTime(trialEnded)
	sub.LastVerifiedAt = nullTime(verified)
	sub.LastEventAt = nullTime(lastEvent)
	if consumed.Valid {
		sub.TrialConsumedDays = models.IntPtr(int(consumed.Int64))
	}
	return sub, nil
}

// GetSubscription возвращает запись подписки по идентификатору шлюза.
func (r *repo) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	row := r.q.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// SaveSubscription создаёт или перезаписывает запись подписки.
func (r *repo) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.SaveSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if sub.ID == "" {
		return fmt.Errorf("%s: empty subscription id", op)
	}
	now := time.Now().UTC()
	createdAt, updatedAt := sub.CreatedAt, sub.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}
	var consumed sql.NullInt64
	if sub.TrialConsumedDays != nil {
		consumed = sql.NullInt64{Int64: int64(*sub.TrialConsumedDays), Valid: true}
	}

	query := `INSERT INTO subscriptions (` + subscriptionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
			  ON CONFLICT (id) DO UPDATE SET
			      user_id = EXCLUDED.user_id,
			      previous_subscription_id = EXCLUDED.previous_subscription_id,
			      order_id = EXCLUDED.order_id,
			      status = EXCLUDED.status,
			      plan = EXCLUDED.plan,
			      price = EXCLUDED.price,
			      currency = EXCLUDED.currency,
			      payment_method = EXCLUDED.payment_method,
			      start_date = EXCLUDED.start_date,
			      trial_end_date = EXCLUDED.trial_end_date,
			      trial_duration = EXCLUDED.trial_duration,
			      trial_eligibility_reason = EXCLUDED.trial_eligibility_reason,
			      trial_consumed_days = EXCLUDED.trial_consumed_days,
			      cancelled_at = EXCLUDED.cancelled_at,
			      suspended_at = EXCLUDED.suspended_at,
			      trial_ended_at = EXCLUDED.trial_ended_at,
			      cancellation_note = EXCLUDED.cancellation_note,
			      gateway_status = EXCLUDED.gateway_status,
			      last_verified_at = EXCLUDED.last_verified_at,
			      last_event_at = EXCLUDED.last_event_at,
			      device_fingerprint = EXCLUDED.device_fingerprint,
			      updated_at = EXCLUDED.updated_at`
	_, err := r.q.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.PreviousSubscriptionID, sub.OrderID, string(sub.Status), sub.Plan, sub.Price,
		sub.Currency, sub.PaymentMethod, sub.StartDate, toNullTime(sub.TrialEndDate), sub.TrialDuration, sub.TrialEligibilityReason,
		consumed, toNullTime(sub.CancelledAt), toNullTime(sub.SuspendedAt), toNullTime(sub.TrialEndedAt), sub.CancellationNote,
		sub.GatewayStatus, toNullTime(sub.LastVerifiedAt), toNullTime(sub.LastEventAt), sub.DeviceFingerprint, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// ListSubscriptions возвращает записи пользователя, свежие отмены первыми.
func (r *repo) ListSubscriptions(ctx context.Context, userID string, statuses ...models.Status) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	args := []any{userID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, storage.StatusStrings(statuses))
	}
	return r.list(ctx, op, query+subscriptionOrder, args...)
}

// FindByFingerprint возвращает записи с тем же отпечатком устройства.
func (r *repo) FindByFingerprint(ctx context.Context, fingerprint string, statuses ...models.Status) ([]*models.Subscription, error) {
	const op = "storage.FindByFingerprint"
	if fingerprint == "" {
		return nil, nil
	}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE device_fingerprint = $1`
	args := []any{fingerprint}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, storage.StatusStrings(statuses))
	}
	return r.list(ctx, op, query+subscriptionOrder, args...)
}

func (r *repo) list(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// AppendEvent добавляет запись в журнал событий.
func (r *repo) AppendEvent(ctx context.Context, event models.SubscriptionEvent) error {
	const op = "storage.AppendEvent"
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO subscription_events (id, user_id, subscription_id, type, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.UserID, event.SubscriptionID, string(event.Type), details, createdAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListEvents возвращает журнал событий пользователя в порядке записи.
func (s *Storage) ListEvents(ctx context.Context, userID string) ([]models.SubscriptionEvent, error) {
	const op = "storage.ListEvents"
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, subscription_id, type, details, created_at
		 FROM subscription_events WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.SubscriptionEvent
	for rows.Next() {
		var (
			ev      models.SubscriptionEvent
			typ     string
			details []byte
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.SubscriptionID, &typ, &details, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ev.Type = models.EventType(typ)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &ev.Details); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
