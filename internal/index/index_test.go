package index

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/eventfile"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
	"github.com/rzbill/tbx/pkg/id"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Options{})
}

func openStream(t *testing.T, fs afero.Fs, dir string) *eventfile.Stream {
	t.Helper()
	s, err := eventfile.Open(eventfile.Options{
		Fs:    fs,
		Dir:   dir,
		Clock: func() time.Time { return time.Unix(1700000000, 0) },
		IDs:   id.NewGenerator(),
		Host:  "host",
		PID:   7,
	})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendScalar(t *testing.T, s *eventfile.Stream, tag string, step int64, v float64) {
	t.Helper()
	sum := &event.Summary{}
	sum.Set(event.Scalar(tag, v))
	ev := event.Event{WallTime: 1700000000 + float64(step), Step: step, Summary: sum}
	if _, err := s.Append(event.Encode(ev)); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func steps(points []Point) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.Step
	}
	return out
}

func equalSteps(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIndexRunIncremental(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	ix := newTestIndex(t)
	s := openStream(t, fs, "logs/train")

	for step := int64(0); step < 3; step++ {
		appendScalar(t, s, "loss", step, float64(step)/10)
	}
	sum := &event.Summary{}
	sum.Set(event.Text("notes", "hello"))
	if _, err := s.Append(event.Encode(event.Event{WallTime: 1, Step: 1, Summary: sum})); err != nil {
		t.Fatalf("append text: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	st, err := ix.IndexRun(ctx, fs, "logs", "train")
	if err != nil {
		t.Fatalf("index run: %v", err)
	}
	if len(st.Files) != 1 || st.Files[0].Scalars != 3 {
		t.Fatalf("first pass stats %+v", st)
	}
	if st.Files[0].Offset != s.Offset() {
		t.Fatalf("cursor %d want %d", st.Files[0].Offset, s.Offset())
	}

	appendScalar(t, s, "loss", 3, 0.3)
	appendScalar(t, s, "loss", 4, 0.4)
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	st, err = ix.IndexRun(ctx, fs, "logs", "train")
	if err != nil {
		t.Fatalf("index run: %v", err)
	}
	if st.Files[0].Scalars != 2 || st.Records() != 2 {
		t.Fatalf("second pass should only see new records: %+v", st)
	}

	points, err := ix.Scalars("train", "loss", QueryOptions{})
	if err != nil {
		t.Fatalf("scalars: %v", err)
	}
	if !equalSteps(steps(points), []int64{0, 1, 2, 3, 4}) {
		t.Fatalf("steps %v", steps(points))
	}
	if points[4].Value != 0.4 || points[4].WallTime != 1700000004 {
		t.Fatalf("point %+v", points[4])
	}

	// unchanged file: nothing new
	st, err = ix.IndexRun(ctx, fs, "logs", "train")
	if err != nil {
		t.Fatalf("index run: %v", err)
	}
	if st.Records() != 0 {
		t.Fatalf("expected no new records, got %d", st.Records())
	}
}

func TestScalarsWindow(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	ix := newTestIndex(t)
	s := openStream(t, fs, "logs")
	for _, step := range []int64{-2, 0, 1, 2, 3, 4} {
		appendScalar(t, s, "acc", step, 1)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := ix.IndexRun(ctx, fs, "logs", "."); err != nil {
		t.Fatalf("index run: %v", err)
	}

	cases := []struct {
		name string
		opts QueryOptions
		want []int64
	}{
		{"all", QueryOptions{}, []int64{-2, 0, 1, 2, 3, 4}},
		{"from 3", QueryOptions{Start: 3}, []int64{3, 4}},
		{"limit", QueryOptions{Start: 1, Limit: 2}, []int64{1, 2}},
		{"reverse", QueryOptions{Reverse: true, Limit: 2}, []int64{4, 3}},
		{"reverse from 1", QueryOptions{Reverse: true, Start: 1}, []int64{1, 0, -2}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			points, err := ix.Scalars(".", "acc", c.opts)
			if err != nil {
				t.Fatalf("scalars: %v", err)
			}
			if !equalSteps(steps(points), c.want) {
				t.Fatalf("steps %v want %v", steps(points), c.want)
			}
		})
	}
}

func TestTagsAndRuns(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	ix := newTestIndex(t)
	for _, run := range []string{"a", "b/c"} {
		s := openStream(t, fs, filepath.Join("logs", run))
		appendScalar(t, s, "loss", 1, 1)
		sum := &event.Summary{}
		sum.Set(event.Text("cfg/text", "x"))
		if _, err := s.Append(event.Encode(event.Event{Step: 1, Summary: sum})); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := s.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}
	stats, err := ix.IndexAll(ctx, fs, "logs")
	if err != nil {
		t.Fatalf("index all: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("want 2 runs, got %d", len(stats))
	}

	runs, err := ix.Runs()
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0] != "a" || runs[1] != "b/c" {
		t.Fatalf("runs %v", runs)
	}

	tags, err := ix.Tags("b/c")
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(tags) != 2 || tags[0].Tag != "cfg/text" || tags[0].Kind != "text" || tags[1].Kind != "scalar" {
		t.Fatalf("tags %+v", tags)
	}

	// run "a" must not see keys of run "b/c"
	if pts, _ := ix.Scalars("b", "loss", QueryOptions{}); len(pts) != 0 {
		t.Fatalf("prefix leak: %v", pts)
	}

	if err := ix.Reset("a"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if pts, _ := ix.Scalars("a", "loss", QueryOptions{}); len(pts) != 0 {
		t.Fatalf("reset left %d points", len(pts))
	}
	runs, _ = ix.Runs()
	if len(runs) != 1 || runs[0] != "b/c" {
		t.Fatalf("runs after reset %v", runs)
	}
}

func TestIndexStopsAtCorruptTail(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	ix := newTestIndex(t)
	s := openStream(t, fs, "logs")
	appendScalar(t, s, "loss", 1, 1)
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	good := s.Offset()
	path := s.Path()

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write(bytes.Repeat([]byte{0x5a}, 20)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	st, err := ix.IndexFile(ctx, fs, ".", path)
	if err != nil {
		t.Fatalf("index file: %v", err)
	}
	if st.Corrupt == nil {
		t.Fatalf("expected corrupt record to be reported")
	}
	if st.Offset != good || st.Scalars != 1 {
		t.Fatalf("stats %+v want offset %d", st, good)
	}
	cur, err := ix.Cursor(".", path)
	if err != nil || cur != good {
		t.Fatalf("cursor %d (%v) want %d", cur, err, good)
	}
}

func TestIndexFileCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	ix := newTestIndex(t)
	s := openStream(t, fs, "logs")
	appendScalar(t, s, "loss", 1, 1)
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ix.IndexFile(ctx, fs, ".", s.Path()); err == nil {
		t.Fatalf("expected context error")
	}
}
