package log

import (
	"fmt"
	"io"
	stdlog "log"
	"strings"
)

// Config declares a logger.
type Config struct {
	// Level is debug|info|warn|error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`
	// Format is text|json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	// Outputs lists destinations: "console", "null" or "file:<path>".
	// Empty means console.
	Outputs []string `json:"outputs" yaml:"outputs" mapstructure:"outputs"`
	// RedactKeys replaces the values of these field keys.
	RedactKeys []string `json:"redact_keys" yaml:"redact_keys" mapstructure:"redact_keys"`
	// SampleInitial and SampleThereafter rate-limit repeated messages.
	SampleInitial    int `json:"sample_initial" yaml:"sample_initial" mapstructure:"sample_initial"`
	SampleThereafter int `json:"sample_thereafter" yaml:"sample_thereafter" mapstructure:"sample_thereafter"`
}

// ApplyConfig builds a logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level := InfoLevel
	if cfg.Level != "" {
		l, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	for _, o := range cfg.Outputs {
		switch {
		case o == "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case o == "null":
			opts = append(opts, WithOutput(&NullOutput{}))
		case strings.HasPrefix(o, "file:"):
			fo, err := NewFileOutput(strings.TrimPrefix(o, "file:"))
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithOutput(fo))
		default:
			return nil, fmt.Errorf("log: unknown output %q", o)
		}
	}

	if len(cfg.RedactKeys) > 0 {
		opts = append(opts, WithRedaction(cfg.RedactKeys...))
	}
	if cfg.SampleThereafter > 0 {
		opts = append(opts, WithSampling(cfg.SampleInitial, cfg.SampleThereafter))
	}
	return NewLogger(opts...), nil
}

// stdWriter adapts Logger to io.Writer for the standard library logger.
type stdWriter struct {
	l     Logger
	level Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.l.Debug(msg)
	case WarnLevel:
		w.l.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.l.Error(msg)
	default:
		w.l.Info(msg)
	}
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that forwards lines to l at level.
func ToStdLogger(l Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdWriter{l: l, level: level}, "", 0)
}

// StdWriter returns an io.Writer that forwards each write to l at info level.
func StdWriter(l Logger) io.Writer { return stdWriter{l: l, level: InfoLevel} }

// RedirectStdLog routes the standard library's default logger through l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{l: l, level: InfoLevel})
}
