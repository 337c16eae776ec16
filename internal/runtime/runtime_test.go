package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	"github.com/rzbill/tbx/internal/index"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
	"github.com/rzbill/tbx/pkg/summary"
)

func testConfig(t *testing.T) cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.LogDir = "/logs"
	cfg.IndexDir = t.TempDir()
	cfg.FlushInterval = 0
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t), Fs: afero.NewMemMapFs(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := rt.Writer().AddScalar("x", 1); !errors.Is(err, summary.ErrWriterClosed) {
		t.Fatalf("write after close: %v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistogramMode = "never"
	if _, err := Open(Options{Config: cfg, Fs: afero.NewMemMapFs()}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestSyncIndexesWrites(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(Options{Config: testConfig(t), Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	w := rt.Writer()
	for step := int64(1); step <= 3; step++ {
		if err := w.AddScalar("loss", float64(step), summary.Step(step), summary.Run("train")); err != nil {
			t.Fatalf("add scalar: %v", err)
		}
	}
	if err := rt.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	pts, err := rt.Index().Scalars("train", "loss", index.QueryOptions{})
	if err != nil {
		t.Fatalf("scalars: %v", err)
	}
	if len(pts) != 3 || pts[2].Step != 3 || pts[2].Value != 3 {
		t.Fatalf("points %+v", pts)
	}

	if err := w.AddScalar("loss", 4, summary.Step(4), summary.Run("train")); err != nil {
		t.Fatalf("add scalar: %v", err)
	}
	if err := rt.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	pts, _ = rt.Index().Scalars("train", "loss", index.QueryOptions{})
	if len(pts) != 4 {
		t.Fatalf("want 4 points after second sync, got %d", len(pts))
	}
}
