package config

import (
	"fmt"
	"time"

	logpkg "github.com/rzbill/tbx/pkg/log"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// LogDir is the TensorBoard log directory; runs are its subdirectories.
	LogDir string `json:"logDir" yaml:"logDir" mapstructure:"logDir"`
	// IndexDir holds the Pebble scalar index.
	IndexDir string `json:"indexDir" yaml:"indexDir" mapstructure:"indexDir"`
	// FlushInterval flushes every run periodically; 0 disables it.
	FlushInterval time.Duration `json:"flushInterval" yaml:"flushInterval" mapstructure:"flushInterval"`
	// FlushBytes flushes a run once this many bytes are pending; 0 disables it.
	FlushBytes int64 `json:"flushBytes" yaml:"flushBytes" mapstructure:"flushBytes"`
	// MaxFileBytes rotates event files at this size; 0 disables rotation.
	MaxFileBytes int64 `json:"maxFileBytes" yaml:"maxFileBytes" mapstructure:"maxFileBytes"`
	// HistogramMode is "cumulative" or "per-call".
	HistogramMode string `json:"histogramMode" yaml:"histogramMode" mapstructure:"histogramMode"`
	// Server listen addresses.
	GRPCAddr string `json:"grpcAddr" yaml:"grpcAddr" mapstructure:"grpcAddr"`
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr" mapstructure:"httpAddr"`
	// Log configures the process logger.
	Log logpkg.Config `json:"log" yaml:"log" mapstructure:"log"`
}

// Default returns built-in defaults. The flush interval matches TensorBoard
// writers' customary 120 seconds.
func Default() Config {
	return Config{
		LogDir:        DefaultLogDir(),
		IndexDir:      DefaultIndexDir(),
		FlushInterval: 120 * time.Second,
		HistogramMode: "cumulative",
		GRPCAddr:      ":50051",
		HTTPAddr:      ":8080",
		Log: logpkg.Config{
			Level:            "info",
			Format:           "text",
			RedactKeys:       []string{"authorization"},
			SampleInitial:    100,
			SampleThereafter: 100,
		},
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.LogDir == "" {
		return fmt.Errorf("config: logDir is required")
	}
	if c.FlushInterval < 0 || c.FlushBytes < 0 || c.MaxFileBytes < 0 {
		return fmt.Errorf("config: flush and rotation limits must not be negative")
	}
	switch c.HistogramMode {
	case "cumulative", "per-call":
	default:
		return fmt.Errorf("config: unknown histogramMode %q", c.HistogramMode)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("logDir", d.LogDir)
	v.SetDefault("indexDir", d.IndexDir)
	v.SetDefault("flushInterval", d.FlushInterval)
	v.SetDefault("flushBytes", d.FlushBytes)
	v.SetDefault("maxFileBytes", d.MaxFileBytes)
	v.SetDefault("histogramMode", d.HistogramMode)
	v.SetDefault("grpcAddr", d.GRPCAddr)
	v.SetDefault("httpAddr", d.HTTPAddr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.redact_keys", d.Log.RedactKeys)
	v.SetDefault("log.sample_initial", d.Log.SampleInitial)
	v.SetDefault("log.sample_thereafter", d.Log.SampleThereafter)
}

// Load reads configuration from a JSON, YAML or TOML file (by extension). If
// path is empty, returns defaults.
func Load(path string) (Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load over an explicit filesystem.
func LoadFs(fs afero.Fs, path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v, Default())
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
