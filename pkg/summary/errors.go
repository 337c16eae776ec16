package summary

import (
	"errors"

	"github.com/rzbill/tbx/internal/eventfile"
	"github.com/rzbill/tbx/internal/imagegrid"
	"github.com/rzbill/tbx/internal/projector"
	"github.com/rzbill/tbx/internal/record"
)

var (
	// ErrWriterClosed is returned by every operation after Close.
	ErrWriterClosed = errors.New("summary: writer closed")
	// ErrInvalidShape matches image tensor shape violations.
	ErrInvalidShape = imagegrid.ErrInvalidShape
	// ErrInvalidEmbedding matches malformed embedding matrices or labels.
	ErrInvalidEmbedding = projector.ErrInvalidEmbedding
	// ErrCorruptRecord matches damaged records on the read side.
	ErrCorruptRecord = record.ErrCorruptRecord
	// ErrInvalidRun is returned for run names that leave the log directory.
	ErrInvalidRun = errors.New("summary: invalid run name")
)

type (
	// InvalidShapeError names the violated image shape constraint.
	InvalidShapeError = imagegrid.InvalidShapeError
	// IOError reports a storage failure while writing an event file.
	IOError = eventfile.IOError
)
