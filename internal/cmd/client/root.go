package client

import (
	"io"

	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/tbx/internal/config"
	logpkg "github.com/rzbill/tbx/pkg/log"
)

// NewRoot constructs a root Cobra command holding the client command groups.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "tbx",
		Short: "tbx client commands",
	}
	AddPersistentFlags(root)
	AddCommands(root)
	return root
}

// AddPersistentFlags registers the flags every command resolves its
// configuration from.
func AddPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "Config file (JSON, YAML or TOML)")
	root.PersistentFlags().String("log-dir", "", "Log directory (overrides config and TBX_LOG_DIR)")
	root.PersistentFlags().String("index-dir", "", "Index directory (overrides config and TBX_INDEX_DIR)")
	root.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error")
}

// AddCommands registers the client command groups on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(
		NewInspectCommand(),
		NewVerifyCommand(),
		NewRecoverCommand(),
		NewIndexCommand(),
		NewPushCommand(),
		NewDemoCommand(),
		NewConfigCommand(),
	)
}

// ResolveConfig loads the config file named by --config, overlays TBX_*
// variables, then explicit flags.
func ResolveConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("log-dir"); v != "" {
		cfg.LogDir = v
	}
	if v, _ := cmd.Flags().GetString("index-dir"); v != "" {
		cfg.IndexDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, cfg.Validate()
}

// commandLogger logs to w, at the configured level, in text form.
func commandLogger(cfg cfgpkg.Config, w io.Writer) logpkg.Logger {
	lvl, err := logpkg.ParseLevel(cfg.Log.Level)
	if err != nil {
		lvl = logpkg.WarnLevel
	}
	return logpkg.NewLogger(
		logpkg.WithLevel(lvl),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(&logpkg.ConsoleOutput{W: w}),
	)
}
