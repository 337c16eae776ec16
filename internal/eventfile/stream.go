package eventfile

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/record"
	"github.com/rzbill/tbx/pkg/id"
	logpkg "github.com/rzbill/tbx/pkg/log"
	"github.com/spf13/afero"
)

const defaultBufSize = 64 * 1024

var (
	defaultIDs  = id.NewGenerator()
	defaultHost = func() string {
		h, err := os.Hostname()
		if err != nil || h == "" {
			return "localhost"
		}
		return h
	}()
)

// Options configures a Stream.
type Options struct {
	// Fs is the filesystem; nil means the OS filesystem.
	Fs afero.Fs
	// Dir is the run directory, created when missing.
	Dir string
	// MaxFileBytes rotates to a new file once the current one would exceed it.
	// 0 disables rotation.
	MaxFileBytes int64
	// BufferSize is the write buffer size. Default 64KiB.
	BufferSize int
	// Clock stamps the file_version event. Default time.Now.
	Clock func() time.Time
	// IDs names new files. Default is a process-wide generator.
	IDs *id.Generator
	// Host and PID appear in file names. Defaults are the local values.
	Host string
	PID  int
	// Logger receives lifecycle messages. Default discards.
	Logger logpkg.Logger
}

func (o *Options) setDefaults() {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufSize
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.IDs == nil {
		o.IDs = defaultIDs
	}
	if o.Host == "" {
		o.Host = defaultHost
	}
	if o.PID == 0 {
		o.PID = os.Getpid()
	}
	if o.Logger == nil {
		o.Logger = logpkg.NewNopLogger()
	}
}

// Stream appends framed records to the current event file of a run.
type Stream struct {
	opts Options

	mu     sync.Mutex
	f      afero.File
	w      *bufio.Writer
	path   string
	offset int64 // bytes appended to the current file, buffered included
	// headerLen is the size of the file_version record; a file holding only
	// its header is never rotated.
	headerLen int64
	pending   int64 // bytes appended since the last flush
	files     []string
	frame     []byte
	closed    bool
}

// Open creates the run directory if needed and starts a new event file.
func Open(opts Options) (*Stream, error) {
	opts.setDefaults()
	if err := opts.Fs.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, ioErr("mkdir", opts.Dir, err)
	}
	s := &Stream{opts: opts}
	if err := s.openFile(); err != nil {
		return nil, err
	}
	return s, nil
}

// openFile creates the next event file and writes its file_version header.
// Callers hold s.mu or own s exclusively.
func (s *Stream) openFile() error {
	f, path, err := s.createFile()
	if err != nil {
		return err
	}
	return s.startFile(f, path)
}

func (s *Stream) createFile() (afero.File, string, error) {
	name := s.opts.IDs.Next().FileName(s.opts.Host, s.opts.PID)
	path := filepath.Join(s.opts.Dir, name)
	f, err := s.opts.Fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", ioErr("create", path, err)
	}
	return f, path, nil
}

// startFile makes f the current file and buffers its header record.
func (s *Stream) startFile(f afero.File, path string) error {
	s.f = f
	s.w = bufio.NewWriterSize(f, s.opts.BufferSize)
	s.path = path
	s.offset = 0
	s.files = append(s.files, path)

	now := s.opts.Clock()
	header := event.Encode(event.Event{WallTime: wallTime(now), FileVersion: event.FileVersion})
	if _, err := s.appendLocked(header); err != nil {
		return err
	}
	s.headerLen = s.offset
	s.opts.Logger.Debug("event file created", logpkg.Str("path", path))
	return nil
}

func wallTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Append frames payload (an encoded event) and buffers it. It returns the byte
// offset of the record within the current file.
func (s *Stream) Append(payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.opts.MaxFileBytes > 0 && s.offset > s.headerLen &&
		s.offset+int64(record.Size(len(payload))) > s.opts.MaxFileBytes {
		if err := s.rotateLocked(); err != nil {
			return 0, err
		}
	}
	return s.appendLocked(payload)
}

func (s *Stream) appendLocked(payload []byte) (int64, error) {
	s.frame = record.Append(s.frame[:0], payload)
	off := s.offset
	n, err := s.w.Write(s.frame)
	s.offset += int64(n)
	s.pending += int64(n)
	if err != nil {
		return off, ioErr("write", s.path, err)
	}
	return off, nil
}

// rotateLocked switches to a new file. The current file stays open until its
// successor exists, so a failed create leaves the stream writable.
func (s *Stream) rotateLocked() error {
	f, path, err := s.createFile()
	if err != nil {
		return err
	}
	old := s.path
	cerr := s.closeFileLocked()
	if err := s.startFile(f, path); err != nil {
		return err
	}
	if cerr != nil {
		return cerr
	}
	s.opts.Logger.Info("event file rotated", logpkg.Str("from", old), logpkg.Str("to", s.path))
	return nil
}

func (s *Stream) flushLocked() error {
	if err := s.w.Flush(); err != nil {
		return ioErr("flush", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return ioErr("sync", s.path, err)
	}
	s.pending = 0
	return nil
}

func (s *Stream) closeFileLocked() error {
	if err := s.flushLocked(); err != nil {
		s.f.Close()
		return err
	}
	if err := s.f.Close(); err != nil {
		return ioErr("close", s.path, err)
	}
	return nil
}

// Flush writes buffered records and syncs the file.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.flushLocked()
}

// Close flushes and closes the current file. Closing twice is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeFileLocked()
}

// Path returns the current file path.
func (s *Stream) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Offset returns the size of the current file including buffered bytes.
func (s *Stream) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Pending returns the number of bytes appended since the last flush.
func (s *Stream) Pending() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Dirty reports whether appended bytes await a flush.
func (s *Stream) Dirty() bool { return s.Pending() > 0 }

// Files returns every file this stream created, oldest first.
func (s *Stream) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}
