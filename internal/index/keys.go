package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// Keyspace helpers for Pebble keys.
//
// Run and tag names are variable length and may contain '/', so each is
// terminated by a 0x00 byte. Layout (byte-wise, lexicographically sortable):
// - r/{run}\x00                                      run marker
// - x/{run}\x00c/{file}                              next unindexed offset (be8)
// - x/{run}\x00t/{tag}                               value kind (1 byte)
// - x/{run}\x00s/{tag}\x00{step_be8^sign}{file}\x00{offset_be8}
//   → wall_time bits (be8) | value bits (be8)

const term = byte(0)

var (
	runMarkerPrefix = []byte("r/")
	runPrefix       = []byte("x/")
	cursorSeg       = []byte("c/")
	tagSeg          = []byte("t/")
	scalarSeg       = []byte("s/")
)

var errBadKey = errors.New("index: malformed key")

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// stepBits maps a signed step onto an unsigned value with the same order.
func stepBits(step int64) uint64 { return uint64(step) ^ (1 << 63) }

func stepFromBits(v uint64) int64 { return int64(v ^ (1 << 63)) }

// KeyRunMarker records that a run has been indexed.
func KeyRunMarker(run string) []byte {
	k := make([]byte, 0, len(run)+3)
	k = append(k, runMarkerPrefix...)
	k = append(k, run...)
	return append(k, term)
}

// KeyRunPrefix is the prefix of every key that belongs to run.
func KeyRunPrefix(run string) []byte {
	k := make([]byte, 0, len(run)+3)
	k = append(k, runPrefix...)
	k = append(k, run...)
	return append(k, term)
}

// KeyCursor builds the per-file cursor key.
func KeyCursor(run, file string) []byte {
	k := KeyRunPrefix(run)
	k = append(k, cursorSeg...)
	return append(k, file...)
}

// KeyTag builds the tag catalogue key.
func KeyTag(run, tag string) []byte {
	k := KeyRunPrefix(run)
	k = append(k, tagSeg...)
	return append(k, tag...)
}

// KeyTagPrefix scans every tag of run.
func KeyTagPrefix(run string) []byte {
	return append(KeyRunPrefix(run), tagSeg...)
}

// KeyScalarPrefix scans every point of one scalar series.
func KeyScalarPrefix(run, tag string) []byte {
	k := KeyRunPrefix(run)
	k = append(k, scalarSeg...)
	k = append(k, tag...)
	return append(k, term)
}

// KeyScalarStep is the smallest key of step within the series.
func KeyScalarStep(run, tag string, step int64) []byte {
	return appendBE8(KeyScalarPrefix(run, tag), stepBits(step))
}

// KeyScalar builds the key of one point. File and offset keep points of
// the same step apart and order them by write position.
func KeyScalar(run, tag string, step int64, file string, offset int64) []byte {
	k := KeyScalarStep(run, tag, step)
	k = append(k, file...)
	k = append(k, term)
	return appendBE8(k, uint64(offset))
}

// parseScalarKey splits the suffix after KeyScalarPrefix.
func parseScalarKey(suffix []byte) (step int64, file string, offset int64, err error) {
	if len(suffix) < 8+1+8 {
		return 0, "", 0, errBadKey
	}
	step = stepFromBits(binary.BigEndian.Uint64(suffix[:8]))
	rest := suffix[8:]
	i := bytes.IndexByte(rest, term)
	if i < 0 || len(rest[i+1:]) != 8 {
		return 0, "", 0, errBadKey
	}
	return step, string(rest[:i]), int64(binary.BigEndian.Uint64(rest[i+1:])), nil
}

func encodePoint(wall, value float64) []byte {
	v := make([]byte, 0, 16)
	v = appendBE8(v, math.Float64bits(wall))
	return appendBE8(v, math.Float64bits(value))
}

func decodePoint(v []byte) (wall, value float64, err error) {
	if len(v) != 16 {
		return 0, 0, errBadKey
	}
	wall = math.Float64frombits(binary.BigEndian.Uint64(v[:8]))
	value = math.Float64frombits(binary.BigEndian.Uint64(v[8:]))
	return wall, value, nil
}
