// Package runtime wires config, the event writer and the Pebble scalar index
// into a single-node tbx instance. It exposes Open/Close, a health check, and
// Sync, which flushes the writer and indexes what it wrote.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.Writer().AddScalar("loss", 0.5, summary.Step(1))
//	_ = rt.Sync(ctx)
//	pts, _ := rt.Index().Scalars(".", "loss", index.QueryOptions{})
package runtime
