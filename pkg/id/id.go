package id

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FilePrefix starts every event file name.
const FilePrefix = "events.out.tfevents."

// ID is a 128-bit sortable identifier encoded as 16 bytes big-endian:
// [8 bytes unix_seconds][8 bytes sequence].
type ID [16]byte

// New builds an ID from its parts.
func New(sec int64, seq uint64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[0:8], uint64(sec))
	binary.BigEndian.PutUint64(id[8:16], seq)
	return id
}

// Unix returns the creation time in seconds since the Unix epoch.
func (i ID) Unix() int64 { return int64(binary.BigEndian.Uint64(i[0:8])) }

// Seq returns the sequence within the creation second.
func (i ID) Seq() uint64 { return binary.BigEndian.Uint64(i[8:16]) }

// Bytes returns the raw 16-byte representation.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

// String returns "<unix_seconds>.<sequence>".
func (i ID) String() string { return fmt.Sprintf("%d.%d", i.Unix(), i.Seq()) }

// Compare returns -1, 0, 1 based on lexical comparison.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// FileName formats the event file name for this ID.
func (i ID) FileName(host string, pid int) string {
	return FilePrefix + strconv.FormatInt(i.Unix(), 10) + "." + host + "." + strconv.Itoa(pid) + "." + strconv.FormatUint(i.Seq(), 10)
}

// FileInfo is a parsed event file name.
type FileInfo struct {
	ID   ID
	Host string
	PID  int
}

// ParseFileName parses a name produced by FileName. Host names may contain
// dots; the seconds, pid and sequence fields may not.
func ParseFileName(name string) (FileInfo, error) {
	if !strings.HasPrefix(name, FilePrefix) {
		return FileInfo{}, fmt.Errorf("id: %q is not an event file name", name)
	}
	rest := name[len(FilePrefix):]
	first := strings.IndexByte(rest, '.')
	last := strings.LastIndexByte(rest, '.')
	if first < 0 || last <= first {
		return FileInfo{}, fmt.Errorf("id: %q: missing fields", name)
	}
	mid := rest[first+1 : last]
	pidDot := strings.LastIndexByte(mid, '.')
	if pidDot < 0 {
		return FileInfo{}, fmt.Errorf("id: %q: missing pid", name)
	}
	sec, err := strconv.ParseInt(rest[:first], 10, 64)
	if err != nil {
		return FileInfo{}, fmt.Errorf("id: %q: seconds: %w", name, err)
	}
	seq, err := strconv.ParseUint(rest[last+1:], 10, 64)
	if err != nil {
		return FileInfo{}, fmt.Errorf("id: %q: sequence: %w", name, err)
	}
	pid, err := strconv.Atoi(mid[pidDot+1:])
	if err != nil {
		return FileInfo{}, fmt.Errorf("id: %q: pid: %w", name, err)
	}
	return FileInfo{ID: New(sec, seq), Host: mid[:pidDot], PID: pid}, nil
}

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu       sync.Mutex
	lastSec  int64
	sequence uint64
	started  bool
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NowSec returns current time in seconds since Unix epoch.
var NowSec = func() int64 { return time.Now().Unix() }

// Next returns a new ID. If the clock goes backwards, it uses lastSec and
// increments the sequence. If the sequence overflows within the same second,
// it waits for the next second.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	sec := NowSec()
	if sec < g.lastSec {
		sec = g.lastSec
	}

	switch {
	case !g.started || sec > g.lastSec:
		g.sequence = 0
	case g.sequence == math.MaxUint64:
		for {
			sec = NowSec()
			if sec > g.lastSec {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		g.sequence = 0
	default:
		g.sequence++
	}

	g.started = true
	g.lastSec = sec
	return New(sec, g.sequence)
}
