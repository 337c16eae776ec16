package record

import (
	"errors"
	"fmt"
)

// ErrCorruptRecord matches every *CorruptRecordError via errors.Is.
var ErrCorruptRecord = errors.New("corrupt record")

// CorruptRecordError reports a record that failed validation. Offset is the
// byte position where the failing record starts; everything before it is intact.
type CorruptRecordError struct {
	Offset int64
	Reason string
	// Err is io.ErrUnexpectedEOF when the stream ended mid-record.
	Err error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record at offset %d: %s", e.Offset, e.Reason)
}

func (e *CorruptRecordError) Is(target error) bool { return target == ErrCorruptRecord }

func (e *CorruptRecordError) Unwrap() error { return e.Err }
