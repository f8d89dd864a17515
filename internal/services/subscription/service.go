// Package subscription реализует управление жизненным циклом подписки:
// право на пробный период, оформление, отмену, повторное оформление,
// синхронизацию статуса по вебхукам платёжного шлюза и сверку со шлюзом.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/paymentprovider"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

// Gateway — платёжный шлюз.
type Gateway interface {
	CreateSubscription(ctx context.Context, req paymentprovider.CreateSubscriptionRequest) (*paymentprovider.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*paymentprovider.Subscription, error)
	CancelSubscription(ctx context.Context, id, reason string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// SetNX записывает ключ, только если его ещё нет. Возвращает true, если запись произошла.
	SetNX(key string, value any, expiration time.Duration) (bool, error)
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Publisher публикует сообщения о жизненном цикле подписки.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Metrics — счётчики операций сервиса.
type Metrics interface {
	RecordSubscriptionCreated(status string)
	RecordCancellation(gatewayFailed bool)
	RecordWebhookEvent(eventType, result string)
	RecordGatewayError(op string)
}

// Options — параметры тарифа и оформления подписки.
type Options struct {
	Plan          string
	Price         float64
	Currency      string
	PaymentMethod string
	PlanID        string
	BrandName     string
	ReturnURL     string
	CancelURL     string
	FreeAccess    bool
	StatusTTL     time.Duration
	WebhookTTL    time.Duration
}

// DefaultOptions возвращает параметры тарифа по умолчанию.
func DefaultOptions() Options {
	return Options{
		Plan:          "standard",
		Price:         2.99,
		Currency:      "GBP",
		PaymentMethod: "paypal",
		BrandName:     "Next Gig",
		StatusTTL:     5 * time.Minute,
		WebhookTTL:    24 * time.Hour,
	}
}

// Service реализует бизнес-логику жизненного цикла подписок.
type Service struct {
	store     storage.Store
	gateway   Gateway
	cache     Cache
	publisher Publisher
	metrics   Metrics
	opts      Options
	log       *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGateway подключает платёжный шлюз. Без шлюза отмена выполняется только локально,
// а повторное оформление и сверка недоступны.
func WithGateway(g Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithCache подключает кеш статусов и дедупликацию вебхуков.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher подключает публикацию сообщений жизненного цикла.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics подключает счётчики.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New создает новый экземпляр Service.
func New(store storage.Store, opts Options, log *slog.Logger, options ...Option) *Service {
	defaults := DefaultOptions()
	if opts.StatusTTL == 0 {
		opts.StatusTTL = defaults.StatusTTL
	}
	if opts.WebhookTTL == 0 {
		opts.WebhookTTL = defaults.WebhookTTL
	}
	s := &Service{
		store:     store,
		opts:      opts,
		log:       log,
		cache:     noopCache{},
		publisher: noopPublisher{},
		metrics:   noopMetrics{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// ensureUser возвращает учётную запись пользователя сессии. При первом обращении
// запись создаётся со сброшенными флагами подписки.
func (s *Service) ensureUser(ctx context.Context, repo storage.Repository, sess session.Session) (*models.User, error) {
	if sess.UserID == "" {
		return nil, models.ErrUnauthenticated
	}
	user, err := repo.GetUser(ctx, sess.UserID)
	if err == nil || !errors.Is(err, models.ErrNotFound) {
		return user, err
	}

	user = models.NewUser(sess.UserID, sess.Email, s.now())
	if err := repo.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	s.log.Info("user account provisioned", slog.String("user_id", user.ID))
	return user, nil
}

func statusCacheKey(userID string) string {
	return "subscription-status:" + userID
}

func webhookCacheKey(eventID string) string {
	return "paypal-webhook:" + eventID
}

// afterChange сбрасывает кеш статуса и публикует сообщение. Ошибки только логируются.
func (s *Service) afterChange(ctx context.Context, routingKey string, msg models.LifecycleMessage) {
	log := s.log.With(slog.String("op", "subscription.afterChange"), slog.String("user_id", msg.UserID))

	if err := s.cache.Invalidate(statusCacheKey(msg.UserID)); err != nil {
		log.Warn("failed to invalidate status cache", sl.Err(err))
	}
	msg.Type = routingKey
	msg.OccurredAt = s.now()
	if err := s.publisher.Publish(ctx, routingKey, msg); err != nil {
		log.Warn("failed to publish lifecycle message", slog.String("routing_key", routingKey), sl.Err(err))
	}
}

func (s *Service) event(userID, subscriptionID string, typ models.EventType, details map[string]any) models.SubscriptionEvent {
	return models.SubscriptionEvent{
		ID:             s.newID(),
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Type:           typ,
		Details:        details,
		CreatedAt:      s.now(),
	}
}

type noopCache struct{}

func (noopCache) Get(string, any) (bool, error)                  { return false, nil }
func (noopCache) Set(string, any, time.Duration) error           { return nil }
func (noopCache) SetNX(string, any, time.Duration) (bool, error) { return true, nil }
func (noopCache) Invalidate(string) error                        { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordSubscriptionCreated(string)  {}
func (noopMetrics) RecordCancellation(bool)           {}
func (noopMetrics) RecordWebhookEvent(string, string) {}
func (noopMetrics) RecordGatewayError(string)         {}
