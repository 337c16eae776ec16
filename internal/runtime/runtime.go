package runtime

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/afero"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	"github.com/rzbill/tbx/internal/index"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
	logpkg "github.com/rzbill/tbx/pkg/log"
	"github.com/rzbill/tbx/pkg/summary"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Fs holds the event files. Default is the OS filesystem.
	Fs afero.Fs
	// Fsync controls index durability. The index is rebuildable, so the
	// default leaves syncing to Pebble.
	Fsync  pebblestore.FsyncMode
	Logger logpkg.Logger
}

// Runtime wires the event writer, the scalar index and its storage for a
// single-node ingest instance.
type Runtime struct {
	config cfgpkg.Config
	fs     afero.Fs
	logger logpkg.Logger
	db     *pebblestore.DB
	index  *index.Index
	writer *summary.Writer

	closeOnce sync.Once
	closeErr  error
}

// Open validates the config, opens the index and starts a writer on LogDir.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	mode, err := summary.ParseHistogramMode(cfg.HistogramMode)
	if err != nil {
		return nil, err
	}

	db, err := pebblestore.Open(pebblestore.Options{DataDir: cfg.IndexDir, Fsync: opts.Fsync, Logger: logger})
	if err != nil {
		return nil, err
	}
	w, err := summary.NewWriter(cfg.LogDir,
		summary.WithFs(fs),
		summary.WithLogger(logger),
		summary.WithFlushInterval(cfg.FlushInterval),
		summary.WithFlushBytes(cfg.FlushBytes),
		summary.WithMaxFileBytes(cfg.MaxFileBytes),
		summary.WithHistogramMode(mode),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	rt := &Runtime{
		config: cfg,
		fs:     fs,
		logger: logger.WithComponent("runtime"),
		db:     db,
		index:  index.New(db, index.Options{Logger: logger}),
		writer: w,
	}
	rt.logger.Info("runtime opened",
		logpkg.Str("log_dir", cfg.LogDir), logpkg.Str("index_dir", cfg.IndexDir))
	return rt, nil
}

// Close flushes and closes the writer, then the index. Later calls return
// the first result.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if err := r.writer.Close(); err != nil && !errors.Is(err, summary.ErrWriterClosed) {
			errs = append(errs, err)
		}
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.db == nil {
		return errors.New("index not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Sync flushes pending events and indexes everything written since the
// previous Sync.
func (r *Runtime) Sync(ctx context.Context) error {
	if err := r.writer.Flush(); err != nil {
		return err
	}
	_, err := r.index.IndexAll(ctx, r.fs, r.config.LogDir)
	return err
}

// Writer returns the event writer.
func (r *Runtime) Writer() *summary.Writer { return r.writer }

// Index returns the scalar index.
func (r *Runtime) Index() *index.Index { return r.index }

// Fs returns the filesystem holding the event files.
func (r *Runtime) Fs() afero.Fs { return r.fs }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
