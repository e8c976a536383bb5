// Package server exposes the watch daemon's liveness over gRPC health checks.
package server

import (
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// WatchService is the health service name reported alongside the overall "".
const WatchService = "invoice_ocr.Watch"

type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger *slog.Logger
}

// NewHealthServer listens on addr and starts as NOT_SERVING.
func NewHealthServer(addr string, logger *slog.Logger) (*HealthServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("health listen failed", "addr", addr, "error", err)
		return nil, err
	}

	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Reflection for grpcurl
	reflection.Register(gs)

	s := &HealthServer{grpc: gs, health: hs, lis: lis, logger: logger}
	s.SetServing(false)
	return s, nil
}

func (s *HealthServer) Addr() string { return s.lis.Addr().String() }

// Start serves in the background.
func (s *HealthServer) Start() {
	s.logger.Info("health.serve", "addr", s.Addr())
	go func() {
		if err := s.grpc.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("health serve error", "error", err)
		}
	}()
}

func (s *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(WatchService, st)
}

// Stop marks everything NOT_SERVING and drains in-flight checks.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info("health.stopped")
}
