package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/tbx/internal/cmd/client"
	serverrun "github.com/rzbill/tbx/internal/cmd/server"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
	logpkg "github.com/rzbill/tbx/pkg/log"
)

func main() {
	// Respect TBX_LOG_LEVEL for CLI output before a config is resolved
	level := os.Getenv("TBX_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "tbx",
		Short: "TensorBoard event log toolkit",
		Long:  "tbx writes, inspects, repairs and indexes TensorBoard event files, and serves an ingest API.",
	}
	clientcmd.AddPersistentFlags(rootCmd)
	clientcmd.AddCommands(rootCmd)

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the ingest server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientcmd.ResolveConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("grpc"); v != "" {
				cfg.GRPCAddr = v
			}
			if v, _ := cmd.Flags().GetString("http"); v != "" {
				cfg.HTTPAddr = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.Log.Format = v
			}
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			mode := pebblestore.FsyncModeNever
			switch fsyncMode {
			case "never":
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			if err := serverrun.Run(context.Background(), serverrun.Options{Config: cfg, Fsync: mode}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("grpc", "", "gRPC listen address (default from config, :50051)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default from config, :8080)")
	serverStartCmd.Flags().String("fsync", "never", "Index fsync mode: always|interval|never")
	serverStartCmd.Flags().String("log-format", os.Getenv("TBX_LOG_FORMAT"), "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
