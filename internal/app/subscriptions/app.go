package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"google.golang.org/grpc"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/cache"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/config"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/grpc/server"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/migrations"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/paymentprovider"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/rabbitmq"
	subservice "github.com/magabrotheeeer/nextgig-subscriptions/internal/services/subscription"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage/memory"
	mongostore "github.com/magabrotheeeer/nextgig-subscriptions/internal/storage/mongo"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage/repository"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 10 * time.Second
	rabbitMQRetries     = 5
	rabbitMQRetryDelay  = 2 * time.Second
)

// App — HTTP API сервиса подписок и gRPC-сервер проверки состояния.
type App struct {
	server     *http.Server
	grpcServer *grpc.Server
	listener   net.Listener
	health     *server.HealthServer
	logger     *slog.Logger
	store      storage.Store
	closers    []func() error
}

// New собирает зависимости приложения по конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "subscriptions.New"

	app := &App{logger: logger}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.store = store

	statusCache, err := app.openCache(ctx, cfg)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	publisher, err := app.openPublisher(cfg)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	options := []subservice.Option{
		subservice.WithCache(statusCache),
		subservice.WithPublisher(publisher),
		subservice.WithMetrics(collector),
	}

	var verifier paymentwebhook.Verifier
	if cfg.PayPalEnabled() {
		gateway := paymentprovider.NewClient(paymentprovider.Config{
			ClientID:  cfg.ClientID,
			Secret:    cfg.ClientSecret,
			BaseURL:   cfg.BaseURL,
			WebhookID: cfg.WebhookID,
			Timeout:   cfg.TimeoutPayPal,
		})
		options = append(options, subservice.WithGateway(gateway))
		if gateway.VerifiesWebhooks() {
			verifier = gateway
		}
		logger.Info("paypal gateway enabled", slog.String("base_url", cfg.BaseURL))
	} else {
		logger.Warn("paypal credentials are not set, gateway calls are disabled")
	}

	service := subservice.New(store, serviceOptions(cfg), logger, options...)

	router := chi.NewRouter()
	RegisterRoutes(router, Routes{
		Logger:      logger,
		Service:     service,
		Tokens:      jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.JWTIssuer, cfg.TokenTTL),
		Verifier:    verifier,
		Pinger:      store,
		Limiter:     middlewarectx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateBurst),
		Recorder:    collector,
		Metrics:     metrics.Handler(reg),
		ShowDetails: cfg.Env != config.EnvProd,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if cfg.GRPCHealthAddress != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddress)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.listener = lis
		app.grpcServer = grpc.NewServer()
		app.health = server.NewHealthServer(store, healthCheckInterval, logger)
		app.health.Register(app.grpcServer)
	}

	return app, nil
}

// Run запускает серверы и блокируется до отмены контекста или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	if a.grpcServer != nil {
		healthCtx, cancelHealth := context.WithCancel(ctx)
		defer cancelHealth()
		go a.health.Watch(healthCtx)

		go func() {
			a.logger.Info("gRPC health service listening on", slog.String("address", a.listener.Addr().String()))
			if err := a.grpcServer.Serve(a.listener); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if err := a.store.Close(timeoutCtx); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	a.close()

	return runErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", sl.Err(err))
		}
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := repository.New(cfg.StorageConnectionString)
		if err != nil {
			return nil, err
		}
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			_ = db.Close(ctx)
			return nil, err
		}
		if err := repository.CheckDatabaseReady(ctx, db); err != nil {
			_ = db.Close(ctx)
			return nil, err
		}
		logger.Info("using postgres storage")
		return db, nil
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			return nil, err
		}
		store, err := mongostore.New(ctx, client, cfg.MongoDatabase)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		logger.Info("using mongo storage", slog.String("database", cfg.MongoDatabase))
		return store, nil
	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}
}

func (a *App) openCache(ctx context.Context, cfg *config.Config) (subservice.Cache, error) {
	if cfg.AddressRedis == "" {
		a.logger.Info("redis address is not set, using in-process cache")
		return cache.NewMemory(cfg.StatusTTL, 2*cfg.StatusTTL), nil
	}

	redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, redisCache.Close)
	return redisCache, nil
}

func (a *App) openPublisher(cfg *config.Config) (subservice.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		a.logger.Info("rabbitmq url is not set, lifecycle messages are only logged")
		return rabbitmq.NewLogPublisher(a.logger), nil
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, rabbitMQRetries, rabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.closers = append(a.closers, conn.Close, closeChannel(ch))
	return rabbitmq.NewPublisher(ch), nil
}

func closeChannel(ch *amqp.Channel) func() error {
	return func() error {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
		return nil
	}
}

func serviceOptions(cfg *config.Config) subservice.Options {
	opts := subservice.DefaultOptions()
	opts.Plan = cfg.Plan
	opts.Price = cfg.Price
	opts.Currency = cfg.Currency
	opts.PlanID = cfg.PlanID
	opts.BrandName = cfg.BrandName
	opts.ReturnURL = cfg.ReturnURL
	opts.CancelURL = cfg.CancelURL
	opts.FreeAccess = cfg.FreeAccess
	opts.StatusTTL = cfg.StatusTTL
	opts.WebhookTTL = cfg.WebhookTTL
	return opts
}
