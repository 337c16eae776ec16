package index

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/eventfile"
	"github.com/rzbill/tbx/internal/record"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
	logpkg "github.com/rzbill/tbx/pkg/log"
)

// batchRecords bounds how many records are folded into one Pebble batch.
const batchRecords = 512

// Options configures an Index.
type Options struct {
	Logger logpkg.Logger
	// Parallelism bounds how many runs IndexAll scans at once (default 4).
	Parallelism int
}

// Index is a Pebble-backed catalogue of the tags and scalar series found in
// event files. It is rebuilt incrementally from the files: each file carries
// a cursor holding the offset of the first record not yet indexed.
type Index struct {
	db     *pebblestore.DB
	logger logpkg.Logger
	par    int
	// runLocks serialises passes over the same run so cursors never regress.
	runLocks sync.Map
}

// New returns an index stored in db.
func New(db *pebblestore.DB, opts Options) *Index {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	par := opts.Parallelism
	if par <= 0 {
		par = 4
	}
	return &Index{db: db, logger: logger.WithComponent("index"), par: par}
}

// FileStats describes one IndexFile pass.
type FileStats struct {
	Path    string
	Records int
	Scalars int
	// Offset is the cursor after the pass.
	Offset int64
	// Corrupt is set when the pass stopped at a damaged record. The cursor is
	// left at the record's offset so a later pass retries once the file is
	// repaired or the writer completes the frame.
	Corrupt error
}

// Cursor returns the next unindexed offset of file in run, 0 if unseen.
func (ix *Index) Cursor(run, file string) (int64, error) {
	v, err := ix.db.Get(KeyCursor(run, filepath.Base(file)))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) < 8 {
		return 0, errBadKey
	}
	return int64(binary.BigEndian.Uint64(v[:8])), nil
}

// IndexFile indexes the records of path appended since the previous pass.
func (ix *Index) IndexFile(ctx context.Context, fs afero.Fs, run, path string) (FileStats, error) {
	stats := FileStats{Path: path}
	name := filepath.Base(path)
	mu, _ := ix.runLocks.LoadOrStore(run, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	start, err := ix.Cursor(run, name)
	if err != nil {
		return stats, err
	}
	stats.Offset = start

	f, err := fs.Open(path)
	if err != nil {
		return stats, fmt.Errorf("index: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return stats, fmt.Errorf("index: seek %s: %w", path, err)
	}

	r := eventfile.NewReaderAt(f, start)
	b := ix.db.NewBatch()
	defer func() { b.Close() }()
	pending := 0
	if err := b.Set(KeyRunMarker(run), nil, nil); err != nil {
		return stats, err
	}

	commit := func() error {
		if err := b.Set(KeyCursor(run, name), appendBE8(nil, uint64(stats.Offset)), nil); err != nil {
			return err
		}
		if err := ix.db.CommitBatch(ctx, b); err != nil {
			return err
		}
		b.Close()
		b = ix.db.NewBatch()
		pending = 0
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, record.ErrCorruptRecord) {
			stats.Corrupt = err
			ix.logger.Warn("stopped at corrupt record",
				logpkg.Str("run", run), logpkg.Str("file", name), logpkg.Err(err))
			break
		}
		if err != nil && !errors.Is(err, event.ErrMalformed) {
			return stats, fmt.Errorf("index: read %s: %w", path, err)
		}
		if err != nil {
			// The frame is intact but not an event; skip it.
			ix.logger.Debug("skipping undecodable record",
				logpkg.Str("file", name), logpkg.Err(err))
		} else {
			n, err := ix.addEvent(b, run, name, rec)
			if err != nil {
				return stats, err
			}
			stats.Records++
			stats.Scalars += n
			pending++
		}
		stats.Offset = r.Offset()
		if pending >= batchRecords {
			if err := commit(); err != nil {
				return stats, err
			}
		}
	}
	if stats.Offset > start {
		if err := commit(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (ix *Index) addEvent(b *pebble.Batch, run, file string, rec eventfile.Record) (int, error) {
	ev := rec.Event
	if ev.Summary == nil {
		return 0, nil
	}
	scalars := 0
	for _, v := range ev.Summary.Values {
		if err := b.Set(KeyTag(run, v.Tag), []byte{byte(v.Kind)}, nil); err != nil {
			return scalars, err
		}
		if v.Kind != event.KindScalar {
			continue
		}
		key := KeyScalar(run, v.Tag, ev.Step, file, rec.Offset)
		if err := b.Set(key, encodePoint(ev.WallTime, v.Scalar), nil); err != nil {
			return scalars, err
		}
		scalars++
	}
	return scalars, nil
}

// RunStats aggregates the passes over every file of a run.
type RunStats struct {
	Run   string
	Files []FileStats
}

// Records sums the records indexed across files.
func (s RunStats) Records() int {
	n := 0
	for _, f := range s.Files {
		n += f.Records
	}
	return n
}

// IndexRun indexes every event file of run, a directory relative to logdir.
func (ix *Index) IndexRun(ctx context.Context, fs afero.Fs, logdir, run string) (RunStats, error) {
	stats := RunStats{Run: run}
	files, err := eventfile.List(fs, filepath.Join(logdir, filepath.FromSlash(run)))
	if err != nil {
		return stats, err
	}
	for _, path := range files {
		fst, err := ix.IndexFile(ctx, fs, run, path)
		stats.Files = append(stats.Files, fst)
		if err != nil {
			return stats, err
		}
	}
	ix.logger.Debug("indexed run", logpkg.Str("run", run),
		logpkg.Int("files", len(files)), logpkg.Int("records", stats.Records()))
	return stats, nil
}

// IndexAll indexes every run found under logdir.
func (ix *Index) IndexAll(ctx context.Context, fs afero.Fs, logdir string) ([]RunStats, error) {
	runs, err := eventfile.Runs(fs, logdir)
	if err != nil {
		return nil, err
	}
	out := make([]RunStats, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.par)
	for i, run := range runs {
		g.Go(func() error {
			st, err := ix.IndexRun(gctx, fs, logdir, run)
			out[i] = st
			return err
		})
	}
	return out, g.Wait()
}

// Reset drops everything indexed for run.
func (ix *Index) Reset(run string) error {
	if err := ix.db.DeletePrefix(KeyRunPrefix(run)); err != nil {
		return err
	}
	return ix.db.Delete(KeyRunMarker(run))
}

// Runs lists the indexed runs.
func (ix *Index) Runs() ([]string, error) {
	var runs []string
	err := ix.db.ScanPrefix(runMarkerPrefix, false, func(k, _ []byte) bool {
		runs = append(runs, string(k[len(runMarkerPrefix):len(k)-1]))
		return true
	})
	return runs, err
}

// TagInfo names a tag and the kind of value last indexed for it.
type TagInfo struct {
	Tag  string `json:"tag"`
	Kind string `json:"kind"`
}

// Tags lists the tags of run in lexical order.
func (ix *Index) Tags(run string) ([]TagInfo, error) {
	prefix := KeyTagPrefix(run)
	var tags []TagInfo
	err := ix.db.ScanPrefix(prefix, false, func(k, v []byte) bool {
		ti := TagInfo{Tag: string(k[len(prefix):])}
		if len(v) == 1 {
			ti.Kind = event.Kind(v[0]).String()
		}
		tags = append(tags, ti)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Tag < tags[j].Tag })
	return tags, nil
}
