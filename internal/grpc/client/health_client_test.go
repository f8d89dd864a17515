package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/grpc/server"
)

type togglePinger struct {
	down atomic.Bool
}

func (p *togglePinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startHealthServer(t *testing.T, pinger server.Pinger) (*server.HealthServer, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := server.NewHealthServer(pinger, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := grpc.NewServer()
	hs.Register(srv)

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	return hs, lis.Addr().String()
}

func TestCheck(t *testing.T) {
	pinger := &togglePinger{}
	hs, addr := startHealthServer(t, pinger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := Check(ctx, addr, server.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status, "до первой проверки хранилища")

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hs.Check(ctx))
	status, err = Check(ctx, addr, server.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	status, err = Check(ctx, addr, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	pinger.down.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, hs.Check(ctx))
	status, err = Check(ctx, addr, server.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}

func TestCheckUnknownService(t *testing.T) {
	_, addr := startHealthServer(t, &togglePinger{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Check(ctx, addr, "unknown.service")
	assert.Error(t, err)
}

func TestWatchStopsOnCancel(t *testing.T) {
	hs, addr := startHealthServer(t, &togglePinger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hs.Watch(ctx)
		close(done)
	}()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()

	require.Eventually(t, func() bool {
		status, err := Check(checkCtx, addr, server.ServiceName)
		return err == nil && status == healthpb.HealthCheckResponse_SERVING
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not stop after context cancellation")
	}

	status, err := Check(checkCtx, addr, server.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}
