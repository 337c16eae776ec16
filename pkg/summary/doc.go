// Package summary writes training telemetry as TensorBoard event files.
//
// # Overview
//
// A Writer owns a log directory. Each run is a subdirectory holding its own
// event file, created on the first write to that run. Every Add call builds
// one Event, stamps it with a step and a wall time, encodes it and appends it
// as one checksummed record. Records from concurrent callers never interleave.
//
// Quick start
//
//	w, err := summary.NewWriter("runs/exp1")
//	if err != nil { ... }
//	defer w.Close()
//	for step := int64(0); step < 100; step++ {
//	    w.AddScalar("loss", loss(step), summary.Step(step))
//	}
//	w.AddScalars("lr", map[string]float64{"warmup": 0.1, "decay": 0.05}, summary.Step(3))
//	w.AddHistogram("weights", params, summary.Step(3))
//	w.AddImages("samples", batch, summary.ChannelsLast, summary.Columns(4))
//
// # Flushing
//
// Records are buffered. Flush writes and syncs every open file; Close flushes
// and invalidates the writer. Background flushing is opt-in through
// WithFlushInterval and WithFlushBytes.
//
// # Histograms
//
// Histograms accumulate across calls per (run, tag) by default, so the
// written summary covers every value seen so far. WithHistogramMode(PerCall)
// summarises each call on its own.
//
// # Embeddings
//
// AddEmbedding writes projector side files under <logdir>/<step>/<tag>/ and
// appends an entry to <logdir>/projector_config.pbtxt. Nothing is written to
// the event stream.
package summary
