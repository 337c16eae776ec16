package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/rzbill/tbx/internal/imagegrid"
	logpkg "github.com/rzbill/tbx/pkg/log"
	"github.com/spf13/afero"
)

// Re-exported image types so callers need only this package.
type (
	Tensor  = imagegrid.Tensor
	Layout  = imagegrid.Layout
	Encoder = imagegrid.Encoder
)

const (
	ChannelsLast  = imagegrid.ChannelsLast
	ChannelsFirst = imagegrid.ChannelsFirst
)

// NewTensor allocates a zero image tensor.
func NewTensor(shape ...int) Tensor { return imagegrid.NewTensor(shape...) }

// HistogramMode selects how histograms accumulate across calls.
type HistogramMode int

const (
	// Cumulative keeps one accumulator per (run, tag) for the writer's lifetime.
	Cumulative HistogramMode = iota
	// PerCall summarises only the values of each call.
	PerCall
)

func (m HistogramMode) String() string {
	if m == PerCall {
		return "per-call"
	}
	return "cumulative"
}

// ParseHistogramMode parses "cumulative" or "per-call".
func ParseHistogramMode(s string) (HistogramMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cumulative":
		return Cumulative, nil
	case "per-call", "percall":
		return PerCall, nil
	}
	return Cumulative, fmt.Errorf("summary: unknown histogram mode %q", s)
}

type options struct {
	fs            afero.Fs
	clock         func() time.Time
	encoder       Encoder
	logger        logpkg.Logger
	flushInterval time.Duration
	flushBytes    int64
	maxFileBytes  int64
	histMode      HistogramMode
}

// Option configures a Writer.
type Option func(*options)

// WithFs sets the filesystem. Default is the OS filesystem.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithClock sets the wall clock used for records without WallTime.
func WithClock(clock func() time.Time) Option { return func(o *options) { o.clock = clock } }

// WithImageEncoder sets the image encoder. Default is PNG.
func WithImageEncoder(enc Encoder) Option { return func(o *options) { o.encoder = enc } }

// WithLogger sets the logger. Default discards.
func WithLogger(l logpkg.Logger) Option { return func(o *options) { o.logger = l } }

// WithFlushInterval flushes all runs every d in a background goroutine that
// Close stops. 0 disables it.
func WithFlushInterval(d time.Duration) Option { return func(o *options) { o.flushInterval = d } }

// WithFlushBytes flushes a run once n bytes are pending. 0 disables it.
func WithFlushBytes(n int64) Option { return func(o *options) { o.flushBytes = n } }

// WithMaxFileBytes rotates a run to a new event file at n bytes. 0 disables it.
func WithMaxFileBytes(n int64) Option { return func(o *options) { o.maxFileBytes = n } }

// WithHistogramMode selects cumulative or per-call histograms.
func WithHistogramMode(m HistogramMode) Option { return func(o *options) { o.histMode = m } }

type recordOptions struct {
	step        int64
	wall        time.Time
	run         string
	columns     int
	labelImages *Tensor
	labelLayout Layout
}

// RecordOption configures one Add call.
type RecordOption func(*recordOptions)

// Step sets the step of the record. Steps are not checked for order.
func Step(n int64) RecordOption { return func(r *recordOptions) { r.step = n } }

// WallTime sets the wall time of the record instead of the writer clock.
func WallTime(t time.Time) RecordOption { return func(r *recordOptions) { r.wall = t } }

// Run writes the record to the named run, a subdirectory of the log directory.
func Run(name string) RecordOption { return func(r *recordOptions) { r.run = name } }

// Columns sets the number of images per grid row for AddImages.
func Columns(n int) RecordOption { return func(r *recordOptions) { r.columns = n } }

// LabelImages attaches one thumbnail per row to AddEmbedding.
func LabelImages(t Tensor, layout Layout) RecordOption {
	return func(r *recordOptions) {
		r.labelImages = &t
		r.labelLayout = layout
	}
}
