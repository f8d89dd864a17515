// Package models содержит доменные структуры сервиса подписок: учётную запись
// пользователя с полями триала, запись подписки платёжного шлюза, события
// аудита и сообщения о жизненном цикле подписки.
package models

import (
	"strings"
	"time"
)

// TrialLengthDays — полная длительность пробного периода в днях.
const TrialLengthDays = 7

// User представляет учётную запись пользователя вместе с полями подписки.
// Идентичность и e-mail приходят из внешнего провайдера аутентификации.
type User struct {
	ID                      string     `json:"id" bson:"_id"`
	Email                   string     `json:"email" bson:"email"`
	Subscribed              bool       `json:"subscribed" bson:"subscribed"`
	OnTrial                 bool       `json:"on_trial" bson:"onTrial"`
	SubscriptionActive      bool       `json:"subscription_active" bson:"subscriptionActive"`
	SubscriptionID          string     `json:"subscription_id,omitempty" bson:"subscriptionId,omitempty"`
	HadPreviousSubscription bool       `json:"had_previous_subscription" bson:"hadPreviousSubscription"`
	TrialCompleted          bool       `json:"trial_completed" bson:"trialCompleted"`
	TrialConsumedDays       int        `json:"trial_consumed_days" bson:"trialConsumedDays"`
	TrialDuration           int        `json:"trial_duration" bson:"trialDuration"`
	TrialEligibilityReason  string     `json:"trial_eligibility_reason,omitempty" bson:"trialEligibilityReason,omitempty"`
	TrialEndDate            *time.Time `json:"trial_end_date,omitempty" bson:"trialEndDate,omitempty"`
	SubscriptionStartDate   *time.Time `json:"subscription_start_date,omitempty" bson:"subscriptionStartDate,omitempty"`
	LastSubscriptionDate    *time.Time `json:"last_subscription_date,omitempty" bson:"lastSubscriptionDate,omitempty"`
	LastCancellationDate    *time.Time `json:"last_cancellation_date,omitempty" bson:"lastCancellationDate,omitempty"`
	TrialEndedAt            *time.Time `json:"trial_ended_at,omitempty" bson:"trialEndedAt,omitempty"`
	SubscriptionCancelledAt *time.Time `json:"subscription_cancelled_at,omitempty" bson:"subscriptionCancelledAt,omitempty"`
	SubscriptionSuspendedAt *time.Time `json:"subscription_suspended_at,omitempty" bson:"subscriptionSuspendedAt,omitempty"`
	SubscriptionVerifiedAt  *time.Time `json:"subscription_verified_at,omitempty" bson:"subscriptionVerifiedAt,omitempty"`
	IsTester                bool       `json:"is_tester" bson:"isTester"`
	CreatedAt               time.Time  `json:"created_at" bson:"createdAt"`
}

// NewUser создаёт учётную запись при первом обращении пользователя: все флаги сброшены.
func NewUser(id, email string, now time.Time) *User {
	u := &User{ID: id, Email: email, CreatedAt: now}
	u.Normalize()
	return u
}

// Normalize приводит учётную запись к согласованному виду: e-mail хранится
// в нижнем регистре, пользователь на триале всегда считается подписанным,
// а число израсходованных дней триала лежит в диапазоне [0, TrialLengthDays].
func (u *User) Normalize() {
	u.Email = NormalizeEmail(u.Email)
	if u.OnTrial {
		u.Subscribed = true
	}
	u.TrialConsumedDays = ClampTrialDays(u.TrialConsumedDays)
	u.TrialDuration = ClampTrialDays(u.TrialDuration)
}

// ClampTrialDays ограничивает значение диапазоном [0, TrialLengthDays].
func ClampTrialDays(days int) int {
	if days < 0 {
		return 0
	}
	if days > TrialLengthDays {
		return TrialLengthDays
	}
	return days
}

// NormalizeEmail приводит e-mail к виду, в котором он хранится и сравнивается.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
