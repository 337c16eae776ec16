// Package index keeps a Pebble catalogue of the runs, tags and scalar series
// stored in event files, so tools can answer series queries without rescanning
// every file.
//
// The event files stay authoritative. Each file has a cursor holding the
// offset of its first unindexed record; IndexFile resumes from it, indexes
// what was appended since, and stops at a corrupt tail without moving the
// cursor past it.
//
//	ix := index.New(db, index.Options{Logger: logger})
//	_, err := ix.IndexAll(ctx, fs, "runs")
//	pts, err := ix.Scalars("train", "loss", index.QueryOptions{Limit: 100})
package index
