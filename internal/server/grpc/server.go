package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/tbx/internal/runtime"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	health *health.Server
	grpc   *grpc.Server
	lis    net.Listener
}

// New constructs a gRPC server and registers the Ingest and health services.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	logger := rt.Logger().WithComponent("grpc")
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(unaryLogging(logger))}, opts...)
	s := &Server{rt: rt, health: health.NewServer(), grpc: grpc.NewServer(opts...)}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	RegisterIngestServer(s.grpc, &ingestSvc{rt: rt})
	return s
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchHealth(hctx, s.rt, s.health, 5*time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
