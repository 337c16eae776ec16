package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/index"
	"github.com/rzbill/tbx/internal/runtime"
)

const bufSize = 1 << 20

func startServer(t *testing.T) (*runtime.Runtime, *grpc.ClientConn) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.LogDir = "/logs"
	cfg.IndexDir = t.TempDir()
	cfg.FlushInterval = 0
	rt, err := runtime.Open(runtime.Options{Config: cfg, Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	srv := New(rt)
	lis := bufconn.Listen(bufSize)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return rt, conn
}

func scalarEvent(tag string, step int64, v float64) []byte {
	s := &event.Summary{}
	s.Set(event.Scalar(tag, v))
	return event.Encode(event.Event{WallTime: 1700000000, Step: step, Summary: s})
}

func TestHealthOverGRPC(t *testing.T) {
	_, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status %v", res.GetStatus())
	}
}

func TestAppendFlushOverGRPC(t *testing.T) {
	rt, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := NewIngestClient(conn)

	rctx := metadata.AppendToOutgoingContext(ctx, RunMetadataKey, "train")
	var header metadata.MD
	for step := int64(1); step <= 3; step++ {
		if _, err := c.Append(rctx, wrapperspb.Bytes(scalarEvent("loss", step, float64(step))), grpc.Header(&header)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if len(header.Get(RequestIDKey)) == 0 {
		t.Fatalf("missing request id header")
	}
	if _, err := c.Flush(ctx, &emptypb.Empty{}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	pts, err := rt.Index().Scalars("train", "loss", index.QueryOptions{})
	if err != nil {
		t.Fatalf("scalars: %v", err)
	}
	if len(pts) != 3 || pts[0].Step != 1 || pts[2].Value != 3 {
		t.Fatalf("points %+v", pts)
	}
}

func TestAppendRejectsBadInput(t *testing.T) {
	_, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := NewIngestClient(conn)

	_, err := c.Append(ctx, wrapperspb.Bytes([]byte{0xff}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("malformed event: got %v", err)
	}

	escape := metadata.AppendToOutgoingContext(ctx, RunMetadataKey, "../outside")
	_, err = c.Append(escape, wrapperspb.Bytes(scalarEvent("loss", 1, 1)))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("escaping run: got %v", err)
	}
}

func TestAppendAfterClose(t *testing.T) {
	rt, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rt.Writer().Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	_, err := NewIngestClient(conn).Append(ctx, wrapperspb.Bytes(scalarEvent("loss", 1, 1)))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("got %v", err)
	}
}
