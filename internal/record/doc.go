// Package record implements the checksummed framing used by TensorBoard event
// files.
//
// # Format
//
// Every record is laid out as:
//
//	uint64le(len(payload)) | maskedCRC(len bytes) | payload | maskedCRC(payload)
//
// where maskedCRC is CRC-32C (Castagnoli) passed through
// ((crc >> 15) | (crc << 17)) + 0xa282ead8. The masking is part of the wire
// format and must not be replaced with a plain CRC.
//
// Usage
//
//	buf := record.Append(nil, payload)
//	r := record.NewReader(f)
//	for {
//	    p, err := r.Next()
//	    if errors.Is(err, io.EOF) { break }
//	    var ce *record.CorruptRecordError
//	    if errors.As(err, &ce) { /* truncate at ce.Offset */ }
//	    _ = p
//	}
package record
