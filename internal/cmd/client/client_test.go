package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	"github.com/rzbill/tbx/internal/eventfile"
	"github.com/rzbill/tbx/internal/index"
	"github.com/rzbill/tbx/internal/runtime"
	grpcserver "github.com/rzbill/tbx/internal/server/grpc"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func demoDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	if err := WriteDemo(afero.NewOsFs(), dir, 7); err != nil {
		t.Fatalf("demo: %v", err)
	}
	return dir
}

func TestDemoCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "demo")
	out, err := run(t, "demo", "--out", dir)
	if err != nil {
		t.Fatalf("demo: %v\n%s", err, out)
	}
	files, err := eventfile.List(afero.NewOsFs(), dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("files %v (%v)", files, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "projector_config.pbtxt")); err != nil {
		t.Fatalf("projector config: %v", err)
	}
}

func TestVerifyAndRecover(t *testing.T) {
	dir := demoDir(t)
	out, err := run(t, "verify", dir)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "OK") {
		t.Fatalf("expected OK line, got %s", out)
	}

	files, _ := eventfile.List(afero.NewOsFs(), dir)
	f, err := os.OpenFile(files[0], os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	out, err = run(t, "verify", dir)
	if err == nil || !strings.Contains(out, "CORRUPT") {
		t.Fatalf("expected corruption, got err=%v out=%s", err, out)
	}

	out, err = run(t, "recover", "--dry-run", dir)
	if err != nil || !strings.Contains(out, "would truncate 5 bytes") {
		t.Fatalf("dry run: %v %s", err, out)
	}
	out, err = run(t, "recover", dir)
	if err != nil || !strings.Contains(out, "truncated 5 bytes") {
		t.Fatalf("recover: %v %s", err, out)
	}
	if out, err := run(t, "verify", dir); err != nil {
		t.Fatalf("verify after recover: %v\n%s", err, out)
	}
}

func TestInspectFilterJSON(t *testing.T) {
	dir := demoDir(t)
	out, err := run(t, "inspect", dir, "--format", "json",
		"--filter", `kind == "scalar" && tag == "scalar/scalar" && step >= 95`)
	if err != nil {
		t.Fatalf("inspect: %v\n%s", err, out)
	}
	var rows []inspectRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 5 {
		t.Fatalf("want 5 rows, got %d", len(rows))
	}
	if rows[0].Step != 95 || rows[0].Value == nil || *rows[0].Value != 95 || rows[0].WallTime != 95 {
		t.Fatalf("row %+v", rows[0])
	}
}

func TestInspectTextAndYAML(t *testing.T) {
	dir := demoDir(t)
	out, err := run(t, "inspect", dir, "--limit", "3")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "header") || !strings.Contains(out, "brain.Event:2") {
		t.Fatalf("expected header row, got %s", out)
	}
	out, err = run(t, "inspect", dir, "--format", "yaml", "--filter", `kind == "text" && tag == "json"`)
	if err != nil {
		t.Fatalf("inspect yaml: %v", err)
	}
	if !strings.Contains(out, "tag: json") || !strings.Contains(out, "kind: text") {
		t.Fatalf("yaml output %s", out)
	}
	if _, err := run(t, "inspect", dir, "--filter", "step >="); err == nil {
		t.Fatalf("expected filter compile error")
	}
}

func TestIndexBuildAndQuery(t *testing.T) {
	dir := demoDir(t)
	idx := t.TempDir()
	out, err := run(t, "index", "build", "--log-dir", dir, "--index-dir", idx)
	if err != nil {
		t.Fatalf("build: %v\n%s", err, out)
	}
	if !strings.Contains(out, ".: 1 files") {
		t.Fatalf("build output %s", out)
	}

	out, err = run(t, "index", "query", "--log-dir", dir, "--index-dir", idx,
		"--tag", "scalar/scalar", "--reverse", "--limit", "2", "--format", "json")
	if err != nil {
		t.Fatalf("query: %v\n%s", err, out)
	}
	var pts []index.Point
	if err := json.Unmarshal([]byte(out), &pts); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(pts) != 2 || pts[0].Step != 99 || pts[1].Step != 98 {
		t.Fatalf("points %+v", pts)
	}

	out, err = run(t, "index", "tags", "--log-dir", dir, "--index-dir", idx)
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	for _, want := range []string{"scalar/scalars/sin", "histogram\thist", "image\timages", "text\ttext"} {
		if !strings.Contains(out, want) {
			t.Fatalf("tags output missing %q:\n%s", want, out)
		}
	}

	// second build finds nothing new
	out, err = run(t, "index", "build", "--log-dir", dir, "--index-dir", idx)
	if err != nil || !strings.Contains(out, "0 new records") {
		t.Fatalf("incremental build: %v %s", err, out)
	}
}

func TestConfigShow(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "tbx.yaml")
	if err := os.WriteFile(cfgPath, []byte("logDir: /srv/runs\nflushBytes: 2048\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := run(t, "config", "show", "--config", cfgPath, "--format", "json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var cfg cfgpkg.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if cfg.LogDir != "/srv/runs" || cfg.FlushBytes != 2048 {
		t.Fatalf("config %+v", cfg)
	}

	t.Setenv("TBX_LOG_DIR", "/from/env")
	out, err = run(t, "config", "show", "--config", cfgPath, "--format", "pp")
	if err != nil || !strings.Contains(out, "/from/env") {
		t.Fatalf("pp output: %v %s", err, out)
	}
}

func TestPushScalar(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.LogDir = "/logs"
	cfg.IndexDir = t.TempDir()
	cfg.FlushInterval = 0
	rt, err := runtime.Open(runtime.Options{Config: cfg, Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	defer rt.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = grpcserver.New(rt).Serve(ctx, lis)
	}()
	defer func() {
		cancel()
		<-done
	}()

	cmd := NewPushCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"scalar", "--addr", lis.Addr().String(), "--run", "train",
		"--tag", "loss", "--value", "0.5", "--step", "3", "--flush"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("push: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "status: ok") {
		t.Fatalf("output %s", buf.String())
	}
	pts, err := rt.Index().Scalars("train", "loss", index.QueryOptions{})
	if err != nil || len(pts) != 1 || pts[0].Step != 3 || pts[0].Value != 0.5 {
		t.Fatalf("points %+v (%v)", pts, err)
	}
}

func TestRootHasCommands(t *testing.T) {
	root := NewRoot()
	want := map[string]bool{"inspect": false, "verify": false, "recover": false, "index": false, "push": false, "demo": false, "config": false}
	for _, c := range root.Commands() {
		want[c.Name()] = true
	}
	for name, ok := range want {
		if !ok {
			t.Fatalf("missing command %s", name)
		}
	}
}
