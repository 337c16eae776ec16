package serverrun

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/afero"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	"github.com/rzbill/tbx/internal/eventfile"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
	logpkg "github.com/rzbill/tbx/pkg/log"
)

func testOptions(t *testing.T, fs afero.Fs) Options {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.LogDir = "/logs"
	cfg.IndexDir = t.TempDir()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	return Options{Config: cfg, Fs: fs, Fsync: pebblestore.FsyncModeNever, Logger: logpkg.NewNopLogger()}
}

// TestRunIntegration verifies Run starts and stops cleanly on cancellation.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := Run(ctx, testOptions(t, afero.NewMemMapFs())); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	opts := testOptions(t, afero.NewMemMapFs())
	opts.Config.HistogramMode = "bogus"
	if err := Run(context.Background(), opts); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestRunFlushesOnShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	fs := afero.NewMemMapFs()
	opts := testOptions(t, fs)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	opts.HTTPListener = lis

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	url := "http://" + lis.Addr().String() + "/v1/scalars"
	body := []byte(`{"run":"train","step":1,"scalars":{"loss":0.5}}`)
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Post(url, "application/json", bytes.NewReader(body))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	files, err := eventfile.List(fs, "/logs/train")
	if err != nil || len(files) != 1 {
		t.Fatalf("files %v (%v)", files, err)
	}
	rep, err := eventfile.Verify(fs, files[0])
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !rep.OK() || rep.Records != 2 {
		t.Fatalf("report %+v", rep)
	}
}
