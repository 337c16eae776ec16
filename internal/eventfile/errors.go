package eventfile

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed Stream.
var ErrClosed = errors.New("eventfile: stream closed")

// IOError reports a storage failure. Writes are never retried.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("eventfile: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
