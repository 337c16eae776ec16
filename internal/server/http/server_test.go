package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	"github.com/rzbill/tbx/internal/runtime"
	logpkg "github.com/rzbill/tbx/pkg/log"
)

func newTestServer(t *testing.T) (*runtime.Runtime, *Server) {
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
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text", Outputs: []string{"null"}})
	return rt, New(rt, logger)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	_, s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("missing request id")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	_, s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id %q", got)
	}
}

func TestScalarsRoundTrip(t *testing.T) {
	_, s := newTestServer(t)
	for _, body := range []string{
		`{"run":"train","step":1,"scalars":{"loss":0.5,"acc":0.1}}`,
		`{"run":"train","step":2,"scalars":{"loss":0.25}}`,
	} {
		if w := do(t, s, http.MethodPost, "/v1/scalars", body); w.Code != http.StatusAccepted {
			t.Fatalf("post scalars: %d %s", w.Code, w.Body.String())
		}
	}
	if w := do(t, s, http.MethodPost, "/v1/flush", ""); w.Code != http.StatusNoContent {
		t.Fatalf("flush: %d %s", w.Code, w.Body.String())
	}

	w := do(t, s, http.MethodGet, "/v1/scalars?run=train&tag=loss", "")
	if w.Code != http.StatusOK {
		t.Fatalf("query: %d", w.Code)
	}
	var resp struct {
		Points []struct {
			Step  int64   `json:"step"`
			Value float64 `json:"value"`
		} `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Points) != 2 || resp.Points[1].Step != 2 || resp.Points[1].Value != 0.25 {
		t.Fatalf("points %+v", resp.Points)
	}

	w = do(t, s, http.MethodGet, "/v1/scalars?run=train&tag=loss&reverse=true&limit=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Points) != 1 || resp.Points[0].Step != 2 {
		t.Fatalf("reverse points %+v", resp.Points)
	}

	w = do(t, s, http.MethodGet, "/v1/tags?run=train", "")
	var tags struct {
		Tags []struct {
			Tag  string `json:"tag"`
			Kind string `json:"kind"`
		} `json:"tags"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tags); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tags.Tags) != 2 || tags.Tags[0].Tag != "acc" || tags.Tags[1].Kind != "scalar" {
		t.Fatalf("tags %+v", tags.Tags)
	}

	w = do(t, s, http.MethodGet, "/v1/runs", "")
	if !strings.Contains(w.Body.String(), `"train"`) {
		t.Fatalf("runs %s", w.Body.String())
	}
}

func TestTextHandler(t *testing.T) {
	_, s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/text", `{"run":"train","tag":"notes","text":"a\nb","markdown":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, s, http.MethodPost, "/v1/text", `{"run":"train"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing tag: %d", w.Code)
	}
}

func TestIngestErrors(t *testing.T) {
	rt, s := newTestServer(t)
	cases := []struct {
		name, body string
		want       int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"no scalars", `{"run":"train"}`, http.StatusBadRequest},
		{"escaping run", `{"run":"../x","scalars":{"a":1}}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if w := do(t, s, http.MethodPost, "/v1/scalars", c.body); w.Code != c.want {
				t.Fatalf("status %d want %d", w.Code, c.want)
			}
		})
	}

	if err := rt.Writer().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w := do(t, s, http.MethodPost, "/v1/scalars", `{"scalars":{"a":1}}`); w.Code != http.StatusConflict {
		t.Fatalf("after close: %d", w.Code)
	}
}

func TestQueryValidation(t *testing.T) {
	_, s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/v1/scalars?run=train", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing tag: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/v1/scalars?run=train&tag=x&start=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad start: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/v1/scalars", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing params: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/runs", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method: %d", w.Code)
	}
}

func TestRequestLogRedactsAndSamples(t *testing.T) {
	rt, _ := newTestServer(t)
	logCfg := cfgpkg.Default().Log
	logCfg.Level = "debug"
	path := filepath.Join(t.TempDir(), "http.log")
	logCfg.Outputs = []string{"file:" + path}
	logger, err := logpkg.ApplyConfig(&logCfg)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	s := New(rt, logger)

	for i := 0; i < 150; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if strings.Contains(out, "s3cret") || !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("authorization not redacted:\n%s", out)
	}
	// 100 initial entries, then one per 100
	if n := strings.Count(out, "/v1/healthz"); n != 101 {
		t.Fatalf("logged %d requests, want 101", n)
	}
}
