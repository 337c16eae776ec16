package config

import (
	"os"
	"path/filepath"
)

// DefaultLogDir is the log directory used when none is configured, relative
// to the working directory as TensorBoard writers customarily do.
func DefaultLogDir() string { return "runs" }

// DefaultIndexDir returns the scalar index directory inside DefaultDataDir.
func DefaultIndexDir() string { return filepath.Join(DefaultDataDir(), "index") }

// DefaultDataDir returns the default data directory based on the host OS.
// It prefers standard locations when available and falls back to a dotdir
// in the user's home directory.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tbx")
	}

	// macOS: ~/Library/Application Support/tbx
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "tbx")
	}

	// Windows: %USERPROFILE%/AppData/Local/tbx
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "tbx")
	}

	// Linux and others: ~/.local/share/tbx
	return filepath.Join(homeDir, ".local", "share", "tbx")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
