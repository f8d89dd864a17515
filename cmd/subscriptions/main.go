// Package main Next Gig Subscriptions API
//
// @title           Next Gig Subscriptions API
// @version         1.0
// @description     API жизненного цикла подписок Next Gig: пробный период, отмена, повторное оформление, сверка с PayPal.

// @contact.name   Next Gig Support
// @contact.email  support@nextgig.app

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session JWT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	_ "github.com/magabrotheeeer/nextgig-subscriptions/docs"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/app/subscriptions"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/config"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/grpc/client"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/grpc/server"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/logger"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "query the gRPC health service and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.MustLoad()

	if *healthcheck {
		os.Exit(runHealthcheck(cfg.GRPCHealthAddress))
	}

	log := logger.New(cfg.Env)
	log.Info("starting subscriptions", slog.String("env", cfg.Env))
	log.Debug("configuration loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := subscriptions.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("subscriptions stopped gracefully")
}

func runHealthcheck(address string) int {
	if address == "" {
		fmt.Fprintln(os.Stderr, "grpc_health_address is not set")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status, err := client.Check(ctx, address, server.ServiceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		fmt.Fprintln(os.Stderr, status.String())
		return 1
	}
	return 0
}
