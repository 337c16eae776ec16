// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// prefix scans, batches, and minimal metrics hooks. It backs the scalar index;
// event files stay the source of truth.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./index",
//	    Logger:  logger,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(ctx, b)
//	b.Close()
//
//	_ = db.ScanPrefix([]byte("run/train/"), false, func(k, v []byte) bool {
//	    return true
//	})
package pebblestore
