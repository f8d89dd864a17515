package subscription

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
)

var fixedNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func cancelledSub(cancelledAt time.Time, consumed int) *models.Subscription {
	return &models.Subscription{
		ID:                "I-OLD",
		Status:            models.StatusCancelled,
		CancelledAt:       models.TimePtr(cancelledAt),
		TrialConsumedDays: models.IntPtr(consumed),
	}
}

func TestDetermineTrialEligibility(t *testing.T) {
	tests := []struct {
		name      string
		user      models.User
		cancelled []*models.Subscription
		want      TrialEligibility
	}{
		{
			name: "first-time subscriber",
			user: models.User{ID: "u1"},
			want: TrialEligibility{Eligible: true, Duration: 7, Reason: ReasonFirstTime, EndDate: fixedNow.AddDate(0, 0, 7)},
		},
		{
			name:      "cancelled 10 days ago with 3 consumed days",
			user:      models.User{ID: "u1", HadPreviousSubscription: true, TrialConsumedDays: 3},
			cancelled: []*models.Subscription{cancelledSub(fixedNow.AddDate(0, 0, -10), 3)},
			want: TrialEligibility{
				Eligible: true,
				Duration: 4,
				Reason:   "resuming previous trial (4 days remaining)",
				EndDate:  fixedNow.AddDate(0, 0, 4),
			},
		},
		{
			name:      "cancelled 40 days ago restores full trial",
			user:      models.User{ID: "u1", HadPreviousSubscription: true, TrialConsumedDays: 7, TrialCompleted: true},
			cancelled: []*models.Subscription{cancelledSub(fixedNow.AddDate(0, 0, -40), 7)},
			want:      TrialEligibility{Eligible: true, Duration: 7, Reason: ReasonTrialRestored, EndDate: fixedNow.AddDate(0, 0, 7)},
		},
		{
			name:      "trial completed within 30 days",
			user:      models.User{ID: "u1", HadPreviousSubscription: true, TrialCompleted: true, TrialConsumedDays: 7},
			cancelled: []*models.Subscription{cancelledSub(fixedNow.AddDate(0, 0, -5), 7)},
			want:      TrialEligibility{Reason: ReasonTrialCompleted, EndDate: fixedNow},
		},
		{
			name:      "all days consumed without completion flag",
			user:      models.User{ID: "u1", HadPreviousSubscription: true, TrialConsumedDays: 7},
			cancelled: []*models.Subscription{cancelledSub(fixedNow.AddDate(0, 0, -5), 7)},
			want:      TrialEligibility{Reason: ReasonNoRemainingDays, EndDate: fixedNow},
		},
		{
			name: "previous subscription without cancellation date",
			user: models.User{ID: "u1", HadPreviousSubscription: true},
			want: TrialEligibility{Eligible: true, Duration: 7, Reason: ReasonNoCancellation, EndDate: fixedNow.AddDate(0, 0, 7)},
		},
		{
			name:      "29.9 days is floored to 29",
			user:      models.User{ID: "u1", HadPreviousSubscription: true, TrialCompleted: true},
			cancelled: []*models.Subscription{cancelledSub(fixedNow.Add(-(30*day - time.Hour)), 7)},
			want:      TrialEligibility{Reason: ReasonTrialCompleted, EndDate: fixedNow},
		},
		{
			name: "most recent cancellation wins",
			user: models.User{ID: "u1", HadPreviousSubscription: true, TrialConsumedDays: 2},
			cancelled: []*models.Subscription{
				cancelledSub(fixedNow.AddDate(0, 0, -60), 0),
				cancelledSub(fixedNow.AddDate(0, 0, -3), 2),
			},
			want: TrialEligibility{
				Eligible: true,
				Duration: 5,
				Reason:   "resuming previous trial (5 days remaining)",
				EndDate:  fixedNow.AddDate(0, 0, 5),
			},
		},
		{
			name:      "consumed days fall back to the cancelled record",
			user:      models.User{ID: "u1", HadPreviousSubscription: true},
			cancelled: []*models.Subscription{cancelledSub(fixedNow.AddDate(0, 0, -2), 6)},
			want: TrialEligibility{
				Eligible: true,
				Duration: 1,
				Reason:   "resuming previous trial (1 days remaining)",
				EndDate:  fixedNow.AddDate(0, 0, 1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := tt.user
			got := DetermineTrialEligibility(fixedNow, &user, tt.cancelled)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetermineTrialEligibility_Properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	t.Run("no history always grants a full trial", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			user := models.User{ID: "u", TrialConsumedDays: rnd.Intn(20) - 5, TrialCompleted: rnd.Intn(2) == 0}
			got := DetermineTrialEligibility(fixedNow, &user, nil)
			assert.True(t, got.Eligible)
			assert.Equal(t, 7, got.Duration)
		}
	})

	t.Run("30 days after cancellation always restores the trial", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			days := 30 + rnd.Intn(1000)
			consumed := rnd.Intn(8)
			user := models.User{ID: "u", HadPreviousSubscription: true, TrialConsumedDays: consumed, TrialCompleted: rnd.Intn(2) == 0}
			got := DetermineTrialEligibility(fixedNow, &user, []*models.Subscription{cancelledSub(fixedNow.AddDate(0, 0, -days), consumed)})
			assert.True(t, got.Eligible)
			assert.Equal(t, 7, got.Duration)
		}
	})

	t.Run("duration stays in range and matches eligibility", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			user := models.User{
				ID:                      "u",
				HadPreviousSubscription: rnd.Intn(2) == 0,
				TrialConsumedDays:       rnd.Intn(30) - 10,
				TrialCompleted:          rnd.Intn(2) == 0,
			}
			var cancelled []*models.Subscription
			if rnd.Intn(2) == 0 {
				cancelled = append(cancelled, cancelledSub(fixedNow.Add(-time.Duration(rnd.Int63n(int64(90*day)))), rnd.Intn(8)))
			}
			got := DetermineTrialEligibility(fixedNow, &user, cancelled)
			assert.GreaterOrEqual(t, got.Duration, 0)
			assert.LessOrEqual(t, got.Duration, 7)
			assert.Equal(t, got.Duration > 0, got.Eligible)
			assert.Equal(t, fixedNow.AddDate(0, 0, got.Duration), got.EndDate)
		}
	})

	t.Run("deterministic for fixed input", func(t *testing.T) {
		user := models.User{ID: "u", HadPreviousSubscription: true, TrialConsumedDays: 2}
		cancelled := []*models.Subscription{cancelledSub(fixedNow.AddDate(0, 0, -4), 2)}
		assert.Equal(t,
			DetermineTrialEligibility(fixedNow, &user, cancelled),
			DetermineTrialEligibility(fixedNow, &user, cancelled))
	})
}

func TestConsumedTrialDays(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		trialEnd *time.Time
		want     int
	}{
		{name: "start equals now", start: fixedNow, trialEnd: models.TimePtr(fixedNow.AddDate(0, 0, 7)), want: 0},
		{name: "three days in", start: fixedNow.AddDate(0, 0, -3), trialEnd: models.TimePtr(fixedNow.AddDate(0, 0, 4)), want: 3},
		{name: "partial day floored", start: fixedNow.Add(-47 * time.Hour), trialEnd: nil, want: 1},
		{name: "trial end in the past", start: fixedNow.AddDate(0, 0, -1), trialEnd: models.TimePtr(fixedNow.Add(-time.Minute)), want: 7},
		{name: "no trial end, long running", start: fixedNow.AddDate(0, -3, 0), trialEnd: nil, want: 7},
		{name: "zero start", start: time.Time{}, trialEnd: nil, want: 0},
		{name: "start in the future", start: fixedNow.AddDate(0, 0, 2), trialEnd: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConsumedTrialDays(fixedNow, tt.start, tt.trialEnd))
		})
	}
}

func TestConsumedTrialDays_AlwaysInRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		start := fixedNow.Add(time.Duration(rnd.Int63n(int64(400*day))) - 200*day)
		var trialEnd *time.Time
		if rnd.Intn(2) == 0 {
			trialEnd = models.TimePtr(fixedNow.Add(time.Duration(rnd.Int63n(int64(40*day))) - 20*day))
		}
		got := ConsumedTrialDays(fixedNow, start, trialEnd)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 7)
	}
}

func TestTrialCompleted(t *testing.T) {
	assert.False(t, TrialCompleted(fixedNow, nil))
	assert.False(t, TrialCompleted(fixedNow, models.TimePtr(fixedNow.Add(time.Hour))))
	assert.True(t, TrialCompleted(fixedNow, models.TimePtr(fixedNow.Add(-time.Hour))))
}

func TestRemainingTrialDays(t *testing.T) {
	assert.Equal(t, 0, RemainingTrialDays(fixedNow, nil))
	assert.Equal(t, 0, RemainingTrialDays(fixedNow, models.TimePtr(fixedNow.AddDate(0, 0, -1))))
	assert.Equal(t, 3, RemainingTrialDays(fixedNow, models.TimePtr(fixedNow.Add(3*day+time.Hour))))
	assert.Equal(t, 7, RemainingTrialDays(fixedNow, models.TimePtr(fixedNow.AddDate(0, 0, 30))))
}
