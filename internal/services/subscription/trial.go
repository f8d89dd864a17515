package subscription

import (
	"fmt"
	"sort"
	"time"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

// TrialRestoreAfterDays — через сколько полных дней после отмены триал восстанавливается целиком.
const TrialRestoreAfterDays = 30

const day = 24 * time.Hour

// Причины решения о триале.
const (
	ReasonFirstTime       = "first-time subscriber"
	ReasonNoCancellation  = "previous subscription without cancellation data"
	ReasonTrialRestored   = "previous subscription cancelled >30 days ago"
	ReasonTrialCompleted  = "previous trial completed within last 30 days"
	ReasonNoRemainingDays = "no trial days remaining"
	ReasonTester          = "tester account"
)

// TrialEligibility — решение о пробном периоде для новой подписки.
type TrialEligibility struct {
	Eligible bool      `json:"eligible"`
	Duration int       `json:"duration"`
	Reason   string    `json:"reason"`
	EndDate  time.Time `json:"end_date"`
}

// DetermineTrialEligibility вычисляет право на триал по учётной записи и отменённым записям пользователя.
// Количество дней после отмены округляется вниз: 29.9 дня считаются 29 днями.
func DetermineTrialEligibility(now time.Time, user *models.User, cancelled []*models.Subscription) TrialEligibility {
	last := latestCancelled(cancelled)

	if !user.HadPreviousSubscription && last == nil {
		return fullTrial(now, ReasonFirstTime)
	}

	cancelledAt := user.LastCancellationDate
	if last != nil && last.CancelledAt != nil && (cancelledAt == nil || last.CancelledAt.After(*cancelledAt)) {
		cancelledAt = last.CancelledAt
	}
	if cancelledAt == nil {
		return fullTrial(now, ReasonNoCancellation)
	}

	if daysBetween(*cancelledAt, now) >= TrialRestoreAfterDays {
		return fullTrial(now, ReasonTrialRestored)
	}

	if user.TrialCompleted {
		return TrialEligibility{Reason: ReasonTrialCompleted, EndDate: now}
	}

	consumed := user.TrialConsumedDays
	if consumed == 0 && last != nil && last.TrialConsumedDays != nil {
		consumed = *last.TrialConsumedDays
	}
	remaining := models.TrialLengthDays - models.ClampTrialDays(consumed)
	if remaining <= 0 {
		return TrialEligibility{Reason: ReasonNoRemainingDays, EndDate: now}
	}

	return TrialEligibility{
		Eligible: true,
		Duration: remaining,
		Reason:   fmt.Sprintf("resuming previous trial (%d days remaining)", remaining),
		EndDate:  now.AddDate(0, 0, remaining),
	}
}

// ConsumedTrialDays возвращает число израсходованных дней триала на момент now.
// Закончившийся триал считается израсходованным полностью.
func ConsumedTrialDays(now, start time.Time, trialEnd *time.Time) int {
	if trialEnd != nil && trialEnd.Before(now) {
		return models.TrialLengthDays
	}
	if start.IsZero() {
		return 0
	}
	return models.ClampTrialDays(daysBetween(start, now))
}

// TrialCompleted сообщает, закончился ли триал к моменту now.
func TrialCompleted(now time.Time, trialEnd *time.Time) bool {
	return trialEnd != nil && trialEnd.Before(now)
}

// RemainingTrialDays возвращает число полных оставшихся дней триала.
func RemainingTrialDays(now time.Time, trialEnd *time.Time) int {
	if trialEnd == nil {
		return 0
	}
	return models.ClampTrialDays(daysBetween(now, *trialEnd))
}

func fullTrial(now time.Time, reason string) TrialEligibility {
	return TrialEligibility{
		Eligible: true,
		Duration: models.TrialLengthDays,
		Reason:   reason,
		EndDate:  now.AddDate(0, 0, models.TrialLengthDays),
	}
}

// daysBetween возвращает число полных суток между from и to, не меньше нуля.
func daysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / day)
}

func latestCancelled(subs []*models.Subscription) *models.Subscription {
	withDate := make([]*models.Subscription, 0, len(subs))
	var undated *models.Subscription
	for _, s := range subs {
		if s == nil || s.Status != models.StatusCancelled {
			continue
		}
		if s.CancelledAt == nil {
			if undated == nil {
				undated = s
			}
			continue
		}
		withDate = append(withDate, s)
	}
	if len(withDate) == 0 {
		return undated
	}
	sort.Slice(withDate, func(i, j int) bool {
		return withDate[i].CancelledAt.After(*withDate[j].CancelledAt)
	})
	return withDate[0]
}
