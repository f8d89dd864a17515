package subscription

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/paymentprovider"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage/memory"
)

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateSubscription(ctx context.Context, req paymentprovider.CreateSubscriptionRequest) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *GatewayMock) GetSubscription(ctx context.Context, id string) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *GatewayMock) CancelSubscription(ctx context.Context, id, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

// memCache — кеш в map с сериализацией в JSON, как у настоящих реализаций.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *memCache) Get(key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, result)
}

func (c *memCache) Set(key string, value any, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	c.ttls[key] = expiration
	return nil
}

func (c *memCache) ttl(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

func (c *memCache) SetNX(key string, value any, _ time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = raw
	return true, nil
}

func (c *memCache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []models.LifecycleMessage
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	if m, ok := msg.(models.LifecycleMessage); ok {
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store   *memory.Store
	gateway *GatewayMock
	cache   *memCache
	pub     *recordingPublisher
	clock   *fakeClock
	svc     *Service
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.PlanID = "P-PLAN"
	opts.ReturnURL = "https://nextgig.test/dashboard"
	opts.CancelURL = "https://nextgig.test/resubscribe"
	return opts
}

func newFixture(t *testing.T, withGateway bool) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		cache: newMemCache(),
		pub:   &recordingPublisher{},
		clock: &fakeClock{now: fixedNow},
	}
	options := []Option{WithClock(f.clock.Now), WithCache(f.cache), WithPublisher(f.pub)}
	if withGateway {
		f.gateway = &GatewayMock{}
		options = append(options, WithGateway(f.gateway))
		t.Cleanup(func() { f.gateway.AssertExpectations(t) })
	}
	f.svc = New(f.store, testOptions(), newNoopLogger(), options...)
	return f
}

func (f *fixture) addUser(t *testing.T, id string) session.Session {
	t.Helper()
	email := id + "@example.com"
	require.NoError(t, f.store.SaveUser(context.Background(), &models.User{ID: id, Email: email, CreatedAt: fixedNow.AddDate(0, -1, 0)}))
	return session.Session{UserID: id, Email: email}
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) record(t *testing.T, id string) *models.Subscription {
	t.Helper()
	rec, err := f.store.GetSubscription(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (f *fixture) eventTypes() []models.EventType {
	var out []models.EventType
	for _, e := range f.store.Events() {
		out = append(out, e.Type)
	}
	return out
}
