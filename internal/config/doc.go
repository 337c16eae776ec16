// Package config provides loading and environment overlay for tbx
// configuration: where event files go, how the writer flushes and rotates
// them, where the scalar index lives, and the server and logging settings.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file (JSON, YAML or TOML) and overlay env vars
//	if fileCfg, err := config.Load("/etc/tbx.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
