package record

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

const (
	// HeaderSize is the length prefix plus its checksum.
	HeaderSize = 12
	// FooterSize is the payload checksum.
	FooterSize = 4

	maskDelta = 0xa282ead8
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// MaskedCRC returns the masked CRC-32C of b.
func MaskedCRC(b []byte) uint32 {
	return mask(crc32.Checksum(b, castagnoli))
}

func mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Size returns the framed size of a payload of n bytes.
func Size(n int) int { return HeaderSize + n + FooterSize }

// Append frames payload and appends the record to dst.
func Append(dst, payload []byte) []byte {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(hdr[8:], MaskedCRC(hdr[:8]))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	var ftr [FooterSize]byte
	binary.LittleEndian.PutUint32(ftr[:], MaskedCRC(payload))
	return append(dst, ftr[:]...)
}

// Write frames payload into w as a single Write call and returns the bytes written.
func Write(w io.Writer, payload []byte) (int, error) {
	return w.Write(Append(make([]byte, 0, Size(len(payload))), payload))
}

// Decode parses the first record in b. It returns the payload and the number
// of bytes consumed. Offsets in returned errors are relative to b.
func Decode(b []byte) ([]byte, int, error) {
	if len(b) < HeaderSize {
		return nil, 0, &CorruptRecordError{Offset: 0, Reason: "truncated header", Err: io.ErrUnexpectedEOF}
	}
	if got, want := MaskedCRC(b[:8]), binary.LittleEndian.Uint32(b[8:12]); got != want {
		return nil, 0, &CorruptRecordError{Offset: 0, Reason: "length checksum mismatch"}
	}
	n := binary.LittleEndian.Uint64(b[:8])
	if len(b) < HeaderSize+FooterSize || n > uint64(len(b)-HeaderSize-FooterSize) {
		return nil, 0, &CorruptRecordError{Offset: 0, Reason: "truncated payload", Err: io.ErrUnexpectedEOF}
	}
	end := HeaderSize + int(n)
	payload := b[HeaderSize:end]
	if got, want := MaskedCRC(payload), binary.LittleEndian.Uint32(b[end:end+FooterSize]); got != want {
		return nil, 0, &CorruptRecordError{Offset: 0, Reason: "payload checksum mismatch"}
	}
	return append([]byte(nil), payload...), end + FooterSize, nil
}
