package rpc

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/lexiqai/transcript-sync/internal/observability"
)

// Server hosts the Sync service and the standard health service
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	serving    atomic.Bool
	logger     zerolog.Logger
}

// NewServer creates a gRPC server for svc
func NewServer(svc SyncServer) *Server {
	logger := observability.Component("rpc")

	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	RegisterSyncServer(gs, svc)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer: gs,
		health:     hs,
		logger:     logger,
	}
}

// Serve accepts connections on lis until Stop or GracefulStop
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	s.serving.Store(true)
	defer s.serving.Store(false)
	return s.grpcServer.Serve(lis)
}

// GracefulStop marks the services as not serving and drains in-flight calls
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Stop closes all connections immediately
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.Stop()
}

// Serving reports whether Serve is running. Suitable as a readiness check.
func (s *Server) Serving(ctx context.Context) (bool, error) {
	return s.serving.Load(), nil
}

func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err)
			observability.RecordError("rpc_failed", "rpc")
		}
		event.
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("took", time.Since(start)).
			Msg("RPC handled")

		return resp, err
	}
}
