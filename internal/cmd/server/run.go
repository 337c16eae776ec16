package serverrun

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	"github.com/rzbill/tbx/internal/runtime"
	grpcserver "github.com/rzbill/tbx/internal/server/grpc"
	httpserver "github.com/rzbill/tbx/internal/server/http"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
	logpkg "github.com/rzbill/tbx/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	// Fs holds the event files. Default is the OS filesystem.
	Fs    afero.Fs
	Fsync pebblestore.FsyncMode
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
	// Pre-bound listeners take precedence over the configured addresses.
	GRPCListener net.Listener
	HTTPListener net.Listener
}

// Run starts the gRPC and HTTP servers and blocks until ctx is cancelled or a
// server fails. On the way out it flushes and indexes what was written, then
// closes the runtime.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	procLogger := opts.Logger
	if procLogger == nil {
		l, err := logpkg.ApplyConfig(&opts.Config.Log)
		if err != nil {
			return err
		}
		procLogger = l
	}
	// Redirect stdlib logs to our logger
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Fs: opts.Fs, Fsync: opts.Fsync, Logger: procLogger})
	if err != nil {
		return err
	}
	defer rt.Close()

	grpcLis, err := listen(opts.GRPCListener, opts.Config.GRPCAddr)
	if err != nil {
		return err
	}
	httpLis, err := listen(opts.HTTPListener, opts.Config.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	procLogger.Info("Starting tbx server",
		logpkg.Str("grpc", grpcLis.Addr().String()),
		logpkg.Str("http", httpLis.Addr().String()),
		logpkg.Str("log_dir", opts.Config.LogDir),
		logpkg.Duration("flush_interval", opts.Config.FlushInterval),
	)

	gsrv := grpcserver.New(rt)
	hsrv := httpserver.New(rt, procLogger)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return gsrv.Serve(gctx, grpcLis) })
	g.Go(func() error { return hsrv.Serve(gctx, httpLis) })
	err = g.Wait()

	// Servers are stopped; make the tail of every run durable and indexed.
	fctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := rt.Sync(fctx); serr != nil {
		procLogger.Error("final sync failed", logpkg.Err(serr))
	}
	if cerr := rt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	procLogger.Info("tbx server stopped")
	return err
}

func listen(l net.Listener, addr string) (net.Listener, error) {
	if l != nil {
		return l, nil
	}
	return net.Listen("tcp", addr)
}
