// Package client содержит gRPC-клиент проверки состояния сервиса подписок.
// Используется командой healthcheck контейнера.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Check запрашивает статус сервиса service по адресу address.
func Check(ctx context.Context, address, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	const op = "client.Check"

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("%s: %w", op, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("%s: %w", op, err)
	}
	return resp.GetStatus(), nil
}
