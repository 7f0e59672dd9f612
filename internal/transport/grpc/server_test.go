package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"mailmart/internal/service"
)

func check(t *testing.T, s *Server, name string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	res, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: name})
	require.NoError(t, err)
	return res.GetStatus()
}

func TestServer_SweepHealth(t *testing.T) {
	s := NewServer(":0")

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, SweepService))

	s.ObserveSweep(service.SweepResult{}, errors.New("scan due transactions: connection refused"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, SweepService))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ""))

	s.ObserveSweep(service.SweepResult{DisputesAccepted: 1}, nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, SweepService))
}
