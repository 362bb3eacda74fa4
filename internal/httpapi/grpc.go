package httpapi

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ilkys.app/internal/monitor"
)

// GRPCServer exposes service health over gRPC for infrastructure that speaks
// the standard health protocol instead of HTTP probes.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server

	probe ReadyProbe
	mon   *monitor.Monitor
}

// NewGRPCServer wires the stock health service and server reflection.
func NewGRPCServer(probe ReadyProbe, mon *monitor.Monitor) *GRPCServer {
	s := &GRPCServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
		probe:  probe,
		mon:    mon,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// UpdateStatus re-evaluates readiness and publishes it to health watchers.
func (s *GRPCServer) UpdateStatus(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.probe.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	} else if s.mon != nil && !s.mon.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(serviceName, status)
	s.health.SetServingStatus("", status)
}

// Start serves on the listener and keeps the health status fresh until the
// context is cancelled.
func (s *GRPCServer) Start(ctx context.Context, lis net.Listener, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s.UpdateStatus(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.UpdateStatus(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return s.server.Serve(lis)
}

// Serve runs the server without the status refresher. Used by tests.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// GracefulStop drains in-flight RPCs and stops the server.
func (s *GRPCServer) GracefulStop() {
	s.server.GracefulStop()
}
