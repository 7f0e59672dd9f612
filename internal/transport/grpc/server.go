package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"mailmart/internal/service"
)

// SweepService is the health service name that tracks the last sweep.
const SweepService = "mailmart.Sweep"

// Server exposes the standard gRPC health protocol. The overall service is
// SERVING while the process is up; SweepService turns NOT_SERVING when the
// most recent sweep failed.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	addr   string
}

func NewServer(addr string) *Server {
	s := &Server{addr: addr, srv: grpc.NewServer(), health: health.NewServer()}
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SweepService, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(lis)
}

func (s *Server) Stop(ctx context.Context) error {
	s.health.Shutdown()
	s.srv.GracefulStop()
	return nil
}

func (s *Server) ObserveSweep(_ service.SweepResult, err error) {
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(SweepService, status)
}
