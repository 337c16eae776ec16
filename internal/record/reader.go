package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// Reader reads framed records sequentially and tracks the byte offset.
type Reader struct {
	r      *bufio.Reader
	offset int64
}

// NewReader wraps r. Reading starts at offset 0 of r.
func NewReader(r io.Reader) *Reader {
	return NewReaderAt(r, 0)
}

// NewReaderAt wraps r whose first byte lives at the given absolute offset.
func NewReaderAt(r io.Reader, offset int64) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10), offset: offset}
}

// Offset returns the offset of the next record to be read. After a
// CorruptRecordError it still points at the start of the failing record.
func (r *Reader) Offset() int64 { return r.offset }

// Next returns the next payload, io.EOF at a clean end of stream, or a
// *CorruptRecordError.
func (r *Reader) Next() ([]byte, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r.r, hdr[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, r.corrupt("truncated header", io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	if MaskedCRC(hdr[:8]) != binary.LittleEndian.Uint32(hdr[8:]) {
		return nil, r.corrupt("length checksum mismatch", nil)
	}
	length := binary.LittleEndian.Uint64(hdr[:8])
	if length > maxPayload {
		return nil, r.corrupt("payload length out of range", nil)
	}
	buf := make([]byte, int(length)+FooterSize)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, r.corrupt("truncated payload", io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	payload := buf[:length]
	if MaskedCRC(payload) != binary.LittleEndian.Uint32(buf[length:]) {
		return nil, r.corrupt("payload checksum mismatch", nil)
	}
	r.offset += int64(HeaderSize) + int64(len(buf))
	return payload, nil
}

// maxPayload bounds allocations for a length prefix that passed its checksum
// but cannot be a real event.
const maxPayload = 1 << 32

func (r *Reader) corrupt(reason string, err error) error {
	return &CorruptRecordError{Offset: r.offset, Reason: reason, Err: err}
}
