package mongo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

// setupStore подключается к replica set из MONGODB_TEST_URL и создаёт отдельную базу на тест.
func setupStore(t *testing.T) *Store {
	uri := os.Getenv("MONGODB_TEST_URL")
	if uri == "" {
		t.Skip("MONGODB_TEST_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := Connect(ctx, Config{URI: uri, RetryAttempts: 1})
	require.NoError(t, err)

	dbName := fmt.Sprintf("nextgig_test_%s", uuid.NewString()[:8])
	s, err := New(ctx, client, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func sub(id, userID string, status models.Status, start time.Time) *models.Subscription {
	return &models.Subscription{
		ID:            id,
		UserID:        userID,
		Status:        status,
		Plan:          "standard",
		Price:         2.99,
		Currency:      "GBP",
		PaymentMethod: "paypal",
		StartDate:     start,
		TrialDuration: 7,
	}
}

func TestStore_UserRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.GetUser(ctx, "u1")
	require.ErrorIs(t, err, models.ErrUserNotFound)

	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "u1", Email: "a@example.com", TrialConsumedDays: 2}))
	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.TrialConsumedDays)
}

func TestStore_UserEmailCaseFoldedAndUnique(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "u1", Email: "Ann@Example.com"}))
	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)

	err = s.SaveUser(ctx, &models.User{ID: "u2", Email: "ann@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "u3"}))
	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "u4"}))
}

func TestStore_OneCurrentPerUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSubscription(ctx, sub("I-1", "u1", models.StatusTrial, start)))
	err := s.SaveSubscription(ctx, sub("I-2", "u1", models.StatusActive, start))
	require.ErrorIs(t, err, models.ErrActiveSubscriptionExists)
	require.NoError(t, s.SaveSubscription(ctx, sub("I-3", "u1", models.StatusCancelled, start)))
}

func TestStore_ConcurrentCreates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(ctx context.Context, repo storage.Repository) error {
				return repo.SaveSubscription(ctx, sub(uuid.NewString(), "u1", models.StatusTrial, start))
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)

	current, err := s.ListSubscriptions(ctx, "u1", models.CurrentStatuses...)
	require.NoError(t, err)
	assert.Len(t, current, 1)
}

func TestStore_InTxRollback(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveSubscription(ctx, sub("I-1", "u1", models.StatusActive, start)))

	err := s.InTx(ctx, func(ctx context.Context, repo storage.Repository) error {
		if err := repo.SaveUser(ctx, &models.User{ID: "u1", Subscribed: true}); err != nil {
			return err
		}
		return repo.SaveSubscription(ctx, sub("I-2", "u1", models.StatusTrial, start))
	})
	require.ErrorIs(t, err, models.ErrActiveSubscriptionExists)

	_, err = s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestStore_ListOrderAndFingerprint(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	older := sub("I-OLD", "u1", models.StatusCancelled, base)
	older.CancelledAt = models.TimePtr(base.AddDate(0, 0, 3))
	newer := sub("I-NEW", "u1", models.StatusCancelled, base.AddDate(0, 1, 0))
	newer.CancelledAt = models.TimePtr(base.AddDate(0, 1, 2))
	newer.DeviceFingerprint = "fp"
	for _, r := range []*models.Subscription{older, newer} {
		require.NoError(t, s.SaveSubscription(ctx, r))
	}

	all, err := s.ListSubscriptions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "I-NEW", all[0].ID)

	byFp, err := s.FindByFingerprint(ctx, "fp")
	require.NoError(t, err)
	require.Len(t, byFp, 1)
	assert.Equal(t, "I-NEW", byFp[0].ID)
}

func TestStore_EventsAndTesters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, models.SubscriptionEvent{
		ID: uuid.NewString(), UserID: "u1", Type: models.EventResubscribed, CreatedAt: time.Now().UTC(),
	}))
	events, err := s.Events(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventResubscribed, events[0].Type)

	require.NoError(t, s.AddTester(ctx, "QA@example.com"))
	ok, err := s.IsTester(ctx, "qa@EXAMPLE.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Connect(ctx, Config{
		URI:            "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200",
		ConnectTimeout: 200 * time.Millisecond,
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrFailedToConnect)
}
