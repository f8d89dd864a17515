package models

import "time"

// EventType — тип события журнала аудита подписок.
type EventType string

const (
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventResubscribed          EventType = "resubscribed"
	EventTesterAccess          EventType = "tester_access"
	EventWebhookApplied        EventType = "webhook_applied"
	EventVerified              EventType = "subscription_verified"
	EventSuspiciousFingerprint EventType = "suspicious_fingerprint"
	EventDuplicateAttempt      EventType = "duplicate_subscription_attempt"
)

// SubscriptionEvent — запись журнала событий подписки (append-only).
type SubscriptionEvent struct {
	ID             string         `json:"id" bson:"_id"`
	UserID         string         `json:"user_id" bson:"userId"`
	SubscriptionID string         `json:"subscription_id,omitempty" bson:"subscriptionId,omitempty"`
	Type           EventType      `json:"type" bson:"type"`
	Details        map[string]any `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt      time.Time      `json:"created_at" bson:"createdAt"`
}

// WebhookEvent — событие платёжного шлюза, приведённое к доменному виду.
type WebhookEvent struct {
	ID             string
	Type           string
	SubscriptionID string
	OccurredAt     time.Time
}

const (
	WebhookSubscriptionCreated   = "BILLING.SUBSCRIPTION.CREATED"
	WebhookSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	WebhookSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	WebhookSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	WebhookPaymentSaleCompleted  = "PAYMENT.SALE.COMPLETED"
)

// LifecycleMessage публикуется в брокер после каждого изменения состояния подписки
// и потребляется сервисом уведомлений.
type LifecycleMessage struct {
	Type           string     `json:"type"`
	UserID         string     `json:"user_id"`
	Email          string     `json:"email"`
	SubscriptionID string     `json:"subscription_id"`
	Status         Status     `json:"status"`
	OnTrial        bool       `json:"on_trial"`
	TrialDuration  int        `json:"trial_duration"`
	TrialEndDate   *time.Time `json:"trial_end_date,omitempty"`
	Note           string     `json:"note,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Типы сообщений жизненного цикла, они же ключи маршрутизации.
const (
	LifecycleCreated     = "subscription.created"
	LifecycleCancelled   = "subscription.cancelled"
	LifecycleResubscribe = "subscription.resubscribed"
	LifecycleActivated   = "subscription.activated"
	LifecycleSuspended   = "subscription.suspended"
)

// LifecycleRoutingKeys перечисляет все ключи маршрутизации сообщений жизненного цикла.
var LifecycleRoutingKeys = []string{
	LifecycleCreated,
	LifecycleCancelled,
	LifecycleResubscribe,
	LifecycleActivated,
	LifecycleSuspended,
}
