// Package id generates the sortable identifiers embedded in event file names.
//
// # Format
//
// An ID is 16 bytes big-endian: [8 bytes unix_seconds][8 bytes sequence].
// Byte-wise comparison preserves creation order, and IDs generated within the
// same second stay strictly increasing by sequence.
//
// # File names
//
// Event files are named
//
//	events.out.tfevents.<unix_seconds>.<host>.<pid>.<sequence>
//
// which TensorBoard discovers by the "tfevents" infix. Rotating a file twice in
// the same second therefore never reuses a name within one process, and host
// plus pid separate concurrent processes writing to the same directory.
//
// # Monotonicity
//
// The Generator pins to the last seen second if the clock regresses, and waits
// for the next second if the sequence would overflow.
//
// Usage
//
//	g := id.NewGenerator()
//	name := g.Next().FileName(host, os.Getpid())
//	parsed, err := id.ParseFileName(name)
package id
