package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/app/sender"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/config"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/logger"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	log.Info("starting notification-sender", slog.String("env", cfg.Env), slog.String("transport", cfg.Transport))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := sender.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize sender app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Error("sender app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("sender app stopped gracefully")
}
