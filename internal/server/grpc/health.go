package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/tbx/internal/runtime"
)

// watchHealth mirrors runtime health into the standard health service until
// ctx is done.
func watchHealth(ctx context.Context, rt *runtime.Runtime, hs *health.Server, every time.Duration) {
	set := func() {
		st := healthpb.HealthCheckResponse_SERVING
		if err := rt.CheckHealth(ctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(IngestServiceName, st)
	}
	set()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			set()
		}
	}
}
