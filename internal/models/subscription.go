package models

import "time"

// Status — состояние записи подписки.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusSuspended Status = "suspended"
)

// CurrentStatuses — состояния, в которых у пользователя может быть не больше одной записи.
var CurrentStatuses = []Status{StatusTrial, StatusActive}

// IsCurrent сообщает, занимает ли запись единственный слот текущей подписки пользователя.
func (s Status) IsCurrent() bool {
	return s == StatusTrial || s == StatusActive
}

// Valid проверяет, что значение входит в перечисление.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusCancelled, StatusSuspended:
		return true
	}
	return false
}

// Subscription — запись подписки, ключом служит идентификатор подписки в платёжном шлюзе.
type Subscription struct {
	ID                     string     `json:"id" bson:"_id"`
	UserID                 string     `json:"user_id" bson:"userId"`
	PreviousSubscriptionID string     `json:"previous_subscription_id,omitempty" bson:"previousSubscriptionId,omitempty"`
	OrderID                string     `json:"order_id,omitempty" bson:"orderId,omitempty"`
	Status                 Status     `json:"status" bson:"status"`
	Plan                   string     `json:"plan" bson:"plan"`
	Price                  float64    `json:"price" bson:"price"`
	Currency               string     `json:"currency" bson:"currency"`
	PaymentMethod          string     `json:"payment_method" bson:"paymentMethod"`
	StartDate              time.Time  `json:"start_date" bson:"startDate"`
	TrialEndDate           *time.Time `json:"trial_end_date,omitempty" bson:"trialEndDate,omitempty"`
	TrialDuration          int        `json:"trial_duration" bson:"trialDuration"`
	TrialEligibilityReason string     `json:"trial_eligibility_reason,omitempty" bson:"trialEligibilityReason,omitempty"`
	TrialConsumedDays      *int       `json:"trial_consumed_days,omitempty" bson:"trialConsumedDays,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty" bson:"cancelledAt,omitempty"`
	SuspendedAt            *time.Time `json:"suspended_at,omitempty" bson:"suspendedAt,omitempty"`
	TrialEndedAt           *time.Time `json:"trial_ended_at,omitempty" bson:"trialEndedAt,omitempty"`
	CancellationNote       string     `json:"cancellation_note,omitempty" bson:"cancellationNote,omitempty"`
	GatewayStatus          string     `json:"gateway_status,omitempty" bson:"gatewayStatus,omitempty"`
	LastVerifiedAt         *time.Time `json:"last_verified_at,omitempty" bson:"lastVerifiedAt,omitempty"`
	LastEventAt            *time.Time `json:"last_event_at,omitempty" bson:"lastEventAt,omitempty"`
	DeviceFingerprint      string     `json:"-" bson:"deviceFingerprint,omitempty"`
	CreatedAt              time.Time  `json:"created_at" bson:"createdAt"`
	UpdatedAt              time.Time  `json:"updated_at" bson:"updatedAt"`
}

// ExistingSubscription — краткое описание текущей подписки для ответа о дубликате.
type ExistingSubscription struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	StartDate time.Time `json:"start_date"`
	Plan      string    `json:"plan"`
}

// Summary возвращает краткое описание записи.
func (s *Subscription) Summary() ExistingSubscription {
	return ExistingSubscription{
		ID:        s.ID,
		Status:    s.Status,
		StartDate: s.StartDate,
		Plan:      s.Plan,
	}
}

// IntPtr возвращает указатель на копию значения.
func IntPtr(v int) *int {
	return &v
}

// TimePtr возвращает указатель на копию значения.
func TimePtr(t time.Time) *time.Time {
	return &t
}
