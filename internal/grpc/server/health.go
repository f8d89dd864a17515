// Package server реализует gRPC-сервер проверки состояния сервиса подписок.
//
// HealthServer публикует стандартный сервис grpc.health.v1.Health и
// периодически обновляет его статус по результату проверки хранилища.
package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
)

// ServiceName — имя сервиса, под которым публикуется статус.
const ServiceName = "nextgig.subscriptions"

const pingTimeout = 2 * time.Second

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer обновляет статус grpc.health.v1.Health по состоянию хранилища.
type HealthServer struct {
	health   *health.Server
	pinger   Pinger
	interval time.Duration
	log      *slog.Logger
}

// NewHealthServer создает HealthServer. До первой проверки сервис считается недоступным.
func NewHealthServer(pinger Pinger, interval time.Duration, log *slog.Logger) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		health:   h,
		pinger:   pinger,
		interval: interval,
		log:      log,
	}
}

// Register регистрирует сервис проверки состояния на gRPC-сервере.
func (s *HealthServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
}

// Check проверяет хранилище и обновляет статус.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	const op = "server.HealthServer.Check"

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(ctx); err != nil {
		s.log.Warn("storage ping failed", sl.Op(op), sl.Err(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch проверяет хранилище с заданным интервалом до отмены контекста,
// после чего переводит все сервисы в NOT_SERVING.
func (s *HealthServer) Watch(ctx context.Context) {
	s.Check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}
