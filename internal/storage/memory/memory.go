// Package memory реализует storage.Store в памяти процесса.
// Используется для локальной разработки и в тестах сервиса.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

// Store хранит пользователей, подписки, события и тестировщиков в map под общим мьютексом.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

type dataset struct {
	users         map[string]models.User
	subscriptions map[string]models.Subscription
	events        []models.SubscriptionEvent
	testers       map[string]struct{}
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{data: &dataset{
		users:         make(map[string]models.User),
		subscriptions: make(map[string]models.Subscription),
		testers:       make(map[string]struct{}),
	}}
}

// AddTester добавляет e-mail в список тестировщиков.
func (s *Store) AddTester(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.testers[strings.ToLower(email)] = struct{}{}
}

// Events возвращает копию журнала событий.
func (s *Store) Events() []models.SubscriptionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SubscriptionEvent, len(s.data.events))
	copy(out, s.data.events)
	return out
}

// InTx выполняет fn под эксклюзивной блокировкой; при ошибке состояние откатывается к снимку.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repo storage.Repository) error) error {
	const op = "storage.memory.InTx"

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, s.data); err != nil {
		s.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.data = snapshot
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не делает.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetUser(ctx, userID)
}

func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SaveUser(ctx, user)
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.GetSubscription(ctx, id)
}

func (s *Store) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SaveSubscription(ctx, sub)
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string, statuses ...models.Status) ([]*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ListSubscriptions(ctx, userID, statuses...)
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string, statuses ...models.Status) ([]*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.FindByFingerprint(ctx, fingerprint, statuses...)
}

func (s *Store) AppendEvent(ctx context.Context, event models.SubscriptionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AppendEvent(ctx, event)
}

func (s *Store) IsTester(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.IsTester(ctx, email)
}

// Методы dataset вызываются только под блокировкой Store.

func (d *dataset) GetUser(_ context.Context, userID string) (*models.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (d *dataset) SaveUser(_ context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"

	if user.ID == "" {
		return fmt.Errorf("%s: empty user id", op)
	}
	u := *user
	u.Email = models.NormalizeEmail(u.Email)
	if u.Email != "" {
		for id, other := range d.users {
			if id != u.ID && other.Email == u.Email {
				return fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
			}
		}
	}
	d.users[u.ID] = u
	return nil
}

func (d *dataset) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	sub, ok := d.subscriptions[id]
	if !ok {
		return nil, models.ErrSubscriptionNotFound
	}
	return copySubscription(sub), nil
}

func (d *dataset) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	const op = "storage.memory.SaveSubscription"

	if sub.ID == "" {
		return fmt.Errorf("%s: empty subscription id", op)
	}
	if sub.Status.IsCurrent() {
		for id, other := range d.subscriptions {
			if id != sub.ID && other.UserID == sub.UserID && other.Status.IsCurrent() {
				return fmt.Errorf("%s: %w", op, models.ErrActiveSubscriptionExists)
			}
		}
	}
	d.subscriptions[sub.ID] = *copySubscription(*sub)
	return nil
}

func (d *dataset) ListSubscriptions(_ context.Context, userID string, statuses ...models.Status) ([]*models.Subscription, error) {
	return d.filter(func(sub models.Subscription) bool { return sub.UserID == userID }, statuses), nil
}

func (d *dataset) FindByFingerprint(_ context.Context, fingerprint string, statuses ...models.Status) ([]*models.Subscription, error) {
	if fingerprint == "" {
		return nil, nil
	}
	return d.filter(func(sub models.Subscription) bool { return sub.DeviceFingerprint == fingerprint }, statuses), nil
}

func (d *dataset) AppendEvent(_ context.Context, event models.SubscriptionEvent) error {
	d.events = append(d.events, event)
	return nil
}

func (d *dataset) IsTester(_ context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	_, ok := d.testers[strings.ToLower(email)]
	return ok, nil
}

func (d *dataset) filter(match func(models.Subscription) bool, statuses []models.Status) []*models.Subscription {
	set := storage.StatusSet(statuses)
	var out []*models.Subscription
	for _, sub := range d.subscriptions {
		if !match(sub) {
			continue
		}
		if _, ok := set[sub.Status]; len(set) > 0 && !ok {
			continue
		}
		out = append(out, copySubscription(sub))
	}
	sortSubscriptions(out)
	return out
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		users:         make(map[string]models.User, len(d.users)),
		subscriptions: make(map[string]models.Subscription, len(d.subscriptions)),
		events:        make([]models.SubscriptionEvent, len(d.events)),
		testers:       make(map[string]struct{}, len(d.testers)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.subscriptions {
		c.subscriptions[k] = v
	}
	copy(c.events, d.events)
	for k := range d.testers {
		c.testers[k] = struct{}{}
	}
	return c
}

// sortSubscriptions упорядочивает записи: свежие отмены первыми, затем по дате начала по убыванию.
func sortSubscriptions(subs []*models.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := subs[i], subs[j]
		switch {
		case a.CancelledAt != nil && b.CancelledAt != nil && !a.CancelledAt.Equal(*b.CancelledAt):
			return a.CancelledAt.After(*b.CancelledAt)
		case a.CancelledAt != nil && b.CancelledAt == nil:
			return true
		case a.CancelledAt == nil && b.CancelledAt != nil:
			return false
		case !a.StartDate.Equal(b.StartDate):
			return a.StartDate.After(b.StartDate)
		default:
			return a.ID < b.ID
		}
	})
}

func copySubscription(sub models.Subscription) *models.Subscription {
	if sub.TrialConsumedDays != nil {
		sub.TrialConsumedDays = models.IntPtr(*sub.TrialConsumedDays)
	}
	return &sub
}
