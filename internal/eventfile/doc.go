// Package eventfile manages the append-only event files of one run directory.
//
// A Stream owns the current file of a run. It frames encoded events with
// package record, buffers them, and rotates to a fresh file once the current
// one reaches MaxFileBytes. Every file starts with a file_version event, so
// each one is readable on its own.
//
//	s, err := eventfile.Open(eventfile.Options{Fs: fs, Dir: "logs/train"})
//	off, err := s.Append(event.Encode(ev))
//	err = s.Flush()
//
// The read side (Reader, List, Verify, Repair) scans files written by any
// producer of the same format. Repair truncates a file at its first corrupt
// record, which is the recovery boundary after a crash.
package eventfile
