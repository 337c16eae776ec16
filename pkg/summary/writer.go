package summary

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/eventfile"
	"github.com/rzbill/tbx/internal/histogram"
	"github.com/rzbill/tbx/internal/imagegrid"
	"github.com/rzbill/tbx/internal/projector"
	logpkg "github.com/rzbill/tbx/pkg/log"
	"github.com/spf13/afero"
)

type histKey struct {
	run string
	tag string
}

// histEntry serialises accumulate-and-append for one (run, tag) so snapshots
// reach the file in the order they were taken.
type histEntry struct {
	mu  sync.Mutex
	acc *histogram.Accumulator
}

// Writer writes events for every run below one log directory. It is safe for
// concurrent use.
type Writer struct {
	logdir    string
	opts      options
	logger    logpkg.Logger
	projector *projector.Writer

	mu      sync.Mutex
	streams map[string]*eventfile.Stream
	hists   map[histKey]*histEntry
	closed  bool

	stop chan struct{}
	done chan struct{}
}

// NewWriter creates logdir when missing and returns a Writer for it. Event
// files are created lazily on the first write to each run.
func NewWriter(logdir string, opts ...Option) (*Writer, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.encoder == nil {
		o.encoder = imagegrid.PNGEncoder{}
	}
	if o.logger == nil {
		o.logger = logpkg.NewNopLogger()
	}
	if err := o.fs.MkdirAll(logdir, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: logdir, Err: err}
	}
	w := &Writer{
		logdir:    logdir,
		opts:      o,
		logger:    o.logger.With(logpkg.Component("writer"), logpkg.Str("logdir", logdir)),
		projector: projector.New(o.fs, logdir, o.encoder),
		streams:   make(map[string]*eventfile.Stream),
		hists:     make(map[histKey]*histEntry),
	}
	if o.flushInterval > 0 {
		w.stop = make(chan struct{})
		w.done = make(chan struct{})
		go w.flushLoop(o.flushInterval)
	}
	return w, nil
}

// LogDir returns the log directory.
func (w *Writer) LogDir() string { return w.logdir }

func (w *Writer) flushLoop(d time.Duration) {
	defer close(w.done)
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			if err := w.Flush(); err != nil && !errors.Is(err, ErrWriterClosed) {
				w.logger.Error("periodic flush failed", logpkg.Err(err))
			}
		}
	}
}

func newRecordOptions(opts []RecordOption) recordOptions {
	var r recordOptions
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (w *Writer) wallTime(r recordOptions) float64 {
	t := r.wall
	if t.IsZero() {
		t = w.opts.clock()
	}
	return float64(t.UnixNano()) / 1e9
}

// streamLocked returns the stream of run, opening it on first use. Callers
// hold w.mu.
func (w *Writer) streamLocked(run string) (*eventfile.Stream, error) {
	run = normRun(run)
	if s, ok := w.streams[run]; ok {
		return s, nil
	}
	if run != "" && !filepath.IsLocal(run) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRun, run)
	}
	s, err := eventfile.Open(eventfile.Options{
		Fs:           w.opts.fs,
		Dir:          filepath.Join(w.logdir, run),
		MaxFileBytes: w.opts.maxFileBytes,
		Clock:        w.opts.clock,
		Logger:       w.logger.With(logpkg.Str("run", run)),
	})
	if err != nil {
		return nil, err
	}
	w.streams[run] = s
	w.logger.Debug("run opened", logpkg.Str("run", run), logpkg.Str("path", s.Path()))
	return s, nil
}

// normRun maps equivalent spellings of a run to one key; the log directory
// itself is "".
func normRun(run string) string {
	if run == "" {
		return ""
	}
	run = filepath.ToSlash(filepath.Clean(run))
	if run == "." {
		return ""
	}
	return run
}

func (w *Writer) acquire(run string) (*eventfile.Stream, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWriterClosed
	}
	return w.streamLocked(run)
}

// append encodes ev and appends it to the stream of run.
func (w *Writer) append(run string, ev event.Event) error {
	s, err := w.acquire(run)
	if err != nil {
		return err
	}
	if _, err := s.Append(event.Encode(ev)); err != nil {
		if errors.Is(err, eventfile.ErrClosed) {
			return ErrWriterClosed
		}
		return err
	}
	if w.opts.flushBytes > 0 && s.Pending() >= w.opts.flushBytes {
		if err := s.Flush(); err != nil && !errors.Is(err, eventfile.ErrClosed) {
			return err
		}
	}
	return nil
}

func (w *Writer) writeSummary(r recordOptions, values ...event.Value) error {
	s := &event.Summary{}
	for _, v := range values {
		s.Set(v)
	}
	return w.append(r.run, event.Event{WallTime: w.wallTime(r), Step: r.step, Summary: s})
}

// WriteEvent appends a pre-built event to run. A zero wall time is replaced by
// the writer clock.
func (w *Writer) WriteEvent(run string, ev event.Event) error {
	if ev.WallTime == 0 {
		ev.WallTime = float64(w.opts.clock().UnixNano()) / 1e9
	}
	return w.append(run, ev)
}

// AddScalar writes one scalar value.
func (w *Writer) AddScalar(tag string, value float64, opts ...RecordOption) error {
	return w.writeSummary(newRecordOptions(opts), event.Scalar(CleanTag(tag), value))
}

// AddScalars writes mainTag/sub for every entry of values in one event,
// ordered by sub tag.
func (w *Writer) AddScalars(mainTag string, values map[string]float64, opts ...RecordOption) error {
	subs := make([]string, 0, len(values))
	for k := range values {
		subs = append(subs, k)
	}
	sort.Strings(subs)
	vs := make([]event.Value, 0, len(subs))
	for _, sub := range subs {
		vs = append(vs, event.Scalar(CleanTag(mainTag+"/"+sub), values[sub]))
	}
	return w.writeSummary(newRecordOptions(opts), vs...)
}

func (w *Writer) encodeImage(t Tensor, layout Layout) (*event.Image, error) {
	px, err := imagegrid.Pack(t, layout)
	if err != nil {
		return nil, err
	}
	b, err := w.opts.encoder.Encode(px)
	if err != nil {
		return nil, fmt.Errorf("summary: encode image: %w", err)
	}
	return &event.Image{Height: px.Height, Width: px.Width, Colorspace: px.Channels, Encoded: b}, nil
}

// AddImage writes one rank-3 image tensor with values in [0, 1].
func (w *Writer) AddImage(tag string, img Tensor, layout Layout, opts ...RecordOption) error {
	enc, err := w.encodeImage(img, layout)
	if err != nil {
		return err
	}
	return w.writeSummary(newRecordOptions(opts), event.ImageValue(CleanTag(tag), enc))
}

// AddImages tiles a rank-4 batch into one grid image, Columns images per row
// (default min(N, 8)).
func (w *Writer) AddImages(tag string, batch Tensor, layout Layout, opts ...RecordOption) error {
	r := newRecordOptions(opts)
	if err := imagegrid.ValidateBatch(batch, layout); err != nil {
		return err
	}
	cols := r.columns
	if cols <= 0 {
		cols = batch.Shape[0]
		if cols > 8 {
			cols = 8
		}
	}
	grid, err := imagegrid.Grid(batch, layout, cols)
	if err != nil {
		return err
	}
	enc, err := w.encodeImage(grid, layout)
	if err != nil {
		return err
	}
	return w.writeSummary(r, event.ImageValue(CleanTag(tag), enc))
}

// AddText writes a text value. With markdown set, every newline becomes a
// hard line break ("  \n").
func (w *Writer) AddText(tag, text string, markdown bool, opts ...RecordOption) error {
	if markdown {
		text = markdownBreaks(text)
	}
	return w.writeSummary(newRecordOptions(opts), event.Text(CleanTag(tag), text))
}

// AddHistogram adds values to the histogram of tag and writes its summary.
func (w *Writer) AddHistogram(tag string, values []float64, opts ...RecordOption) error {
	r := newRecordOptions(opts)
	tag = CleanTag(tag)
	run := normRun(r.run)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	if _, err := w.streamLocked(run); err != nil {
		w.mu.Unlock()
		return err
	}
	key := histKey{run: run, tag: tag}
	e, ok := w.hists[key]
	if !ok {
		e = &histEntry{acc: histogram.New()}
		if w.opts.histMode == Cumulative {
			w.hists[key] = e
		}
	}
	w.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	sum := e.acc.Accumulate(values)
	return w.writeSummary(r, event.HistogramValue(tag, histogramProto(sum)))
}

func histogramProto(s histogram.Summary) *event.Histogram {
	c := s.Compact()
	h := &event.Histogram{
		Min:          c.Min,
		Max:          c.Max,
		Num:          float64(c.Count),
		Sum:          c.Sum,
		SumSquares:   c.SumSquares,
		BucketLimits: c.BucketLimits,
		Buckets:      make([]float64, len(c.BucketCounts)),
	}
	for i, n := range c.BucketCounts {
		h.Buckets[i] = float64(n)
	}
	return h
}

// AddTensor writes a raw float64 tensor value.
func (w *Writer) AddTensor(tag string, shape []int64, values []float64, opts ...RecordOption) error {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("summary: tensor %q: negative dimension %d", tag, d)
		}
		if d != 0 && n > math.MaxInt64/d {
			return fmt.Errorf("summary: tensor %q: shape %v overflows", tag, shape)
		}
		n *= d
	}
	if n != int64(len(values)) {
		return fmt.Errorf("summary: tensor %q: shape %v holds %d values, got %d", tag, shape, n, len(values))
	}
	t := &event.Tensor{DType: event.DTDouble, Shape: append([]int64(nil), shape...), Doubles: append([]float64(nil), values...)}
	return w.writeSummary(newRecordOptions(opts), event.TensorValue(CleanTag(tag), t))
}

// AddEmbedding writes an N×D matrix with one label per row as projector side
// files. Use LabelImages to attach thumbnails.
func (w *Writer) AddEmbedding(tag string, matrix [][]float64, labels []string, opts ...RecordOption) error {
	r := newRecordOptions(opts)
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWriterClosed
	}
	entry, err := w.projector.Write(projector.Embedding{
		Tag:         tag,
		Step:        r.step,
		Matrix:      matrix,
		Labels:      labels,
		LabelImages: r.labelImages,
		Layout:      r.labelLayout,
	})
	if err != nil {
		return err
	}
	w.logger.Debug("embedding written", logpkg.Str("tensor", entry.TensorName), logpkg.Str("path", entry.TensorPath))
	return nil
}

// Flush writes and syncs every open event file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	streams := make([]*eventfile.Stream, 0, len(w.streams))
	for _, s := range w.streams {
		streams = append(streams, s)
	}
	w.mu.Unlock()

	var errs []error
	for _, s := range streams {
		if err := s.Flush(); err != nil && !errors.Is(err, eventfile.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every event file. Later calls return
// ErrWriterClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.closed = true
	streams := w.streams
	w.streams = nil
	w.hists = nil
	w.mu.Unlock()

	if w.stop != nil {
		close(w.stop)
		<-w.done
	}
	var errs []error
	for run, s := range streams {
		if err := s.Close(); err != nil {
			w.logger.Error("close run failed", logpkg.Str("run", run), logpkg.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Runs returns the runs written so far, sorted.
func (w *Writer) Runs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	runs := make([]string, 0, len(w.streams))
	for r := range w.streams {
		runs = append(runs, r)
	}
	sort.Strings(runs)
	return runs
}

// Files returns the event files of run created by this writer, oldest first.
func (w *Writer) Files(run string) []string {
	w.mu.Lock()
	s := w.streams[normRun(run)]
	w.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Files()
}
