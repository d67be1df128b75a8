// Package grpc serves the standard gRPC health protocol for the auth
// service. The status follows credential store reachability.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/citygate/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "citygate.auth"

const defaultProbeInterval = 15 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthServer struct {
	address       string
	logger        logging.Logger
	store         Pinger
	health        *health.Server
	probeInterval time.Duration
}

// NewHealthServer returns a server that reports NOT_SERVING until the first
// successful probe of store. A nil store is always considered reachable.
func NewHealthServer(address string, l logging.Logger, store Pinger) *HealthServer {
	if l == nil {
		l = logging.Nop{}
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		address:       address,
		logger:        l.With("module", "grpc_health"),
		store:         store,
		health:        hs,
		probeInterval: defaultProbeInterval,
	}
}

// Probe pings the store once and updates the reported status.
func (s *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.store != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.store.PingContext(pctx); err != nil {
			s.logger.Warn(ctx, "credential store unreachable", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Run listens on the configured address and serves until ctx is done.
func (s *HealthServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then marks every service
// NOT_SERVING and stops gracefully.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.Probe(ctx)

	go func() {
		t := time.NewTicker(s.probeInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "stopping gRPC health server")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.Probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "starting gRPC health server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
