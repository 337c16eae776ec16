package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.FlushInterval != 120*time.Second {
		t.Fatalf("flush interval default = %v", cfg.FlushInterval)
	}
	if cfg.HistogramMode != "cumulative" {
		t.Fatalf("histogram mode default = %q", cfg.HistogramMode)
	}
	if cfg.LogDir != "runs" {
		t.Fatalf("log dir default = %q", cfg.LogDir)
	}
	if len(cfg.Log.RedactKeys) != 1 || cfg.Log.RedactKeys[0] != "authorization" || cfg.Log.SampleThereafter != 100 {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := []byte("logDir: /data/runs\nflushInterval: 30s\nmaxFileBytes: 1048576\nhistogramMode: per-call\nlog:\n  level: debug\n")
	if err := afero.WriteFile(fs, "/etc/tbx.yaml", data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFs(fs, "/etc/tbx.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogDir != "/data/runs" || cfg.FlushInterval != 30*time.Second || cfg.MaxFileBytes != 1<<20 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.HistogramMode != "per-call" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	// unset keys keep their defaults
	if cfg.GRPCAddr != ":50051" || cfg.Log.Format != "text" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if len(cfg.Log.RedactKeys) != 1 || cfg.Log.SampleInitial != 100 {
		t.Fatalf("log defaults lost: %+v", cfg.Log)
	}
}

func TestLoadJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := []byte(`{"logDir":"exp","flushBytes":4096,"httpAddr":":9090"}`)
	if err := afero.WriteFile(fs, "tbx.json", data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFs(fs, "tbx.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogDir != "exp" || cfg.FlushBytes != 4096 || cfg.HTTPAddr != ":9090" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "tbx.json", []byte(`{"histogramMode":"sometimes"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFs(fs, "tbx.json"); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := LoadFs(fs, "missing.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FlushInterval != Default().FlushInterval {
		t.Fatalf("expected defaults")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("TBX_LOG_DIR", "/tmp/runs")
	t.Setenv("TBX_FLUSH_INTERVAL", "5s")
	t.Setenv("TBX_FLUSH_BYTES", "not-a-number")
	t.Setenv("TBX_HISTOGRAM_MODE", "PER-CALL")
	t.Setenv("TBX_LOG_FORMAT", "json")
	FromEnv(&cfg)
	if cfg.LogDir != "/tmp/runs" || cfg.FlushInterval != 5*time.Second {
		t.Fatalf("env override: %+v", cfg)
	}
	if cfg.FlushBytes != 0 {
		t.Fatalf("malformed value applied: %d", cfg.FlushBytes)
	}
	if cfg.HistogramMode != "per-call" || cfg.Log.Format != "json" {
		t.Fatalf("env override: %+v", cfg)
	}
}

func TestIsDir(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{name: "existing directory", path: ".", expected: true},
		{name: "non-existent path", path: "/non/existent/path/that/does/not/exist", expected: false},
		{name: "file instead of directory", path: os.Args[0], expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDir(tt.path); got != tt.expected {
				t.Errorf("isDir(%s) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestFromEnvRedactKeys(t *testing.T) {
	t.Setenv("TBX_LOG_REDACT", "Authorization, token,,")
	cfg := Default()
	FromEnv(&cfg)
	if len(cfg.Log.RedactKeys) != 2 || cfg.Log.RedactKeys[0] != "authorization" || cfg.Log.RedactKeys[1] != "token" {
		t.Fatalf("redact keys = %q", cfg.Log.RedactKeys)
	}
}
