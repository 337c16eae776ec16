package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overlays TBX_* environment variables onto cfg. Malformed values are
// ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TBX_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("TBX_INDEX_DIR"); v != "" {
		cfg.IndexDir = v
	}
	if v := os.Getenv("TBX_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FlushInterval = d
		}
	}
	if v := os.Getenv("TBX_FLUSH_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.FlushBytes = n
		}
	}
	if v := os.Getenv("TBX_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxFileBytes = n
		}
	}
	if v := os.Getenv("TBX_HISTOGRAM_MODE"); v != "" {
		cfg.HistogramMode = strings.ToLower(v)
	}
	if v := os.Getenv("TBX_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("TBX_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("TBX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TBX_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TBX_LOG_REDACT"); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, strings.ToLower(k))
			}
		}
		cfg.Log.RedactKeys = keys
	}
}
