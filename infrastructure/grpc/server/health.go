package server

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayService is the name probes use to ask for the relay status.
const RelayService = "chat.Relay"

// HealthServer exposes grpc.health.v1.Health for orchestrators and load balancers.
type HealthServer struct {
	log     *slog.Logger
	address string
	health  *health.Server
}

func NewHealthServer(log *slog.Logger, address string) *HealthServer {
	return &HealthServer{log: log, address: address, health: health.NewServer()}
}

func (h *HealthServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", h.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.address, err)
	}
	return h.Serve(ctx, listener)
}

// Serve reports SERVING until ctx is cancelled, then NOT_SERVING before stopping.
func (h *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(h.log)))
	healthpb.RegisterHealthServer(s, h.health)
	h.health.SetServingStatus(RelayService, healthpb.HealthCheckResponse_SERVING)

	errChan := make(chan error, 1)
	go func() {
		h.log.Info("Starting gRPC health server", "address", listener.Addr().String(), "at", time.Now().UTC())
		errChan <- s.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		h.log.Info("Shutting down gRPC health server")
	case err := <-errChan:
		h.health.SetServingStatus(RelayService, healthpb.HealthCheckResponse_NOT_SERVING)
		if err != nil && !goerrors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC health server error: %w", err)
		}
		return nil
	}

	h.health.Shutdown()
	s.GracefulStop()
	<-errChan
	return nil
}

// Status returns the status currently reported for service.
func (h *HealthServer) Status(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}
