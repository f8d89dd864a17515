// Package subscriptions собирает HTTP API сервиса подписок: хранилище, кеш,
// брокер уведомлений, клиент PayPal, метрики, маршруты и gRPC-проверку состояния.
package subscriptions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/subscription/health"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/subscription/resubscribe"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/subscription/status"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/subscription/verify"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/middlewarectx"
)

// SubscriptionService объединяет операции сервиса, нужные обработчикам.
type SubscriptionService interface {
	create.Service
	cancel.Service
	resubscribe.Service
	status.Service
	verify.Service
	paymentwebhook.Service
}

// Routes — зависимости маршрутов.
type Routes struct {
	Logger      *slog.Logger
	Service     SubscriptionService
	Tokens      middlewarectx.TokenParser
	Verifier    paymentwebhook.Verifier // nil отключает проверку подписи вебхука
	Pinger      health.Pinger
	Limiter     *middlewarectx.RateLimiter
	Recorder    middlewarectx.HTTPRecorder
	Metrics     http.Handler
	ShowDetails bool
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, deps Routes) {
	logger := deps.Logger

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middlewarectx.RequestLogger(logger, deps.Recorder),
		middleware.Recoverer,
		middlewarectx.FingerprintMiddleware,
	)

	r.Get("/health", health.New(logger, deps.Pinger).ServeHTTP)
	r.Handle("/metrics", deps.Metrics)
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api", func(r chi.Router) {
		// Вебхук шлюза не ограничивается по частоте
		r.Post("/webhooks/paypal", paymentwebhook.New(logger, deps.Service, deps.Verifier).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(deps.Limiter, logger))

			r.Get("/verify-subscription", verify.New(logger, deps.Service, deps.ShowDetails).ServeHTTP)

			// Группа с проверкой сессии
			r.Route("/v1", func(r chi.Router) {
				r.Use(middlewarectx.SessionMiddleware(deps.Tokens, logger))
				r.Post("/subscriptions", create.New(logger, deps.Service, deps.ShowDetails).ServeHTTP)
				r.Post("/subscriptions/cancel", cancel.New(logger, deps.Service, deps.ShowDetails).ServeHTTP)
				r.Post("/subscriptions/resubscribe", resubscribe.New(logger, deps.Service, deps.ShowDetails).ServeHTTP)
				r.Get("/subscriptions/status", status.New(logger, deps.Service, deps.ShowDetails).ServeHTTP)
			})
		})
	})
}
