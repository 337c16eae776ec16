package eventfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/record"
	"github.com/rzbill/tbx/pkg/id"
	"github.com/spf13/afero"
)

// Record is one decoded event and the byte offset of its frame.
type Record struct {
	Offset int64
	Size   int
	Event  event.Event
}

// Reader decodes framed events from a stream.
type Reader struct {
	rr *record.Reader
}

// NewReader reads events from the beginning of r.
func NewReader(r io.Reader) *Reader { return &Reader{rr: record.NewReader(r)} }

// NewReaderAt reads events from r, which is positioned at offset.
func NewReaderAt(r io.Reader, offset int64) *Reader {
	return &Reader{rr: record.NewReaderAt(r, offset)}
}

// Next returns the next record, io.EOF at a clean end, a *record.CorruptRecordError
// on a damaged frame, or a decode error for a frame that is intact but not an event.
func (r *Reader) Next() (Record, error) {
	off := r.rr.Offset()
	payload, err := r.rr.Next()
	if err != nil {
		return Record{}, err
	}
	ev, err := event.Decode(payload)
	if err != nil {
		return Record{}, fmt.Errorf("eventfile: record at offset %d: %w", off, err)
	}
	return Record{Offset: off, Size: record.Size(len(payload)), Event: ev}, nil
}

// Offset returns the offset of the next record.
func (r *Reader) Offset() int64 { return r.rr.Offset() }

// IsEventFile reports whether name looks like an event file.
func IsEventFile(name string) bool {
	return strings.Contains(filepath.Base(name), "tfevents")
}

// List returns the event files directly inside dir, oldest first. Names
// produced by this package sort by creation id; others sort by name after them.
func List(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, ioErr("readdir", dir, err)
	}
	type file struct {
		name   string
		info   id.FileInfo
		parsed bool
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !IsEventFile(e.Name()) {
			continue
		}
		info, perr := id.ParseFileName(e.Name())
		files = append(files, file{name: e.Name(), info: info, parsed: perr == nil})
	}
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.parsed != b.parsed {
			return a.parsed
		}
		if a.parsed {
			if c := a.info.ID.Compare(b.info.ID); c != 0 {
				return c < 0
			}
		}
		return a.name < b.name
	})
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Join(dir, f.name)
	}
	return out, nil
}

// Runs returns the run directories under logdir that hold event files,
// relative to logdir. Event files directly in logdir form the run ".".
func Runs(fs afero.Fs, logdir string) ([]string, error) {
	seen := map[string]bool{}
	err := afero.Walk(fs, logdir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !IsEventFile(info.Name()) {
			return nil
		}
		rel, err := filepath.Rel(logdir, filepath.Dir(path))
		if err != nil {
			return err
		}
		seen[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, ioErr("walk", logdir, err)
	}
	runs := make([]string, 0, len(seen))
	for r := range seen {
		runs = append(runs, r)
	}
	sort.Strings(runs)
	return runs, nil
}

// Report summarises a scan of one file.
type Report struct {
	Path        string
	Records     int
	ValidBytes  int64
	Size        int64
	FileVersion string
	// Corrupt is the first damaged frame, nil when every frame is intact.
	Corrupt error
	// Undecodable counts intact frames whose payload is not an event. They
	// are skipped, not treated as damage; FirstUndecodable is the first.
	Undecodable      int
	FirstUndecodable error
}

// OK reports whether every frame of the file is intact.
func (r Report) OK() bool { return r.Corrupt == nil && r.ValidBytes == r.Size }

// Verify scans path and reports how much of it is valid. I/O failures are
// returned as errors; damaged frames are reported in Report.Corrupt.
func Verify(fs afero.Fs, path string) (Report, error) {
	rep := Report{Path: path}
	f, err := fs.Open(path)
	if err != nil {
		return rep, ioErr("open", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return rep, ioErr("stat", path, err)
	}
	rep.Size = st.Size()

	r := NewReader(f)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if errors.Is(err, event.ErrMalformed) {
			rep.Undecodable++
			if rep.FirstUndecodable == nil {
				rep.FirstUndecodable = err
			}
			rep.ValidBytes = r.Offset()
			continue
		}
		if err != nil {
			if errors.Is(err, record.ErrCorruptRecord) {
				rep.Corrupt = err
				return rep, nil
			}
			return rep, ioErr("read", path, err)
		}
		if rep.Records == 0 {
			rep.FileVersion = rec.Event.FileVersion
		}
		rep.Records++
		rep.ValidBytes = rec.Offset + int64(rec.Size)
	}
}

// Repair truncates path at its first damaged frame. Intact frames that do not
// decode as events are kept. It returns the report of the scan that preceded
// truncation; a file that is already intact is left untouched.
func Repair(fs afero.Fs, path string) (Report, error) {
	rep, err := Verify(fs, path)
	if err != nil || rep.OK() {
		return rep, err
	}
	f, err := fs.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return rep, ioErr("open", path, err)
	}
	if err := f.Truncate(rep.ValidBytes); err != nil {
		f.Close()
		return rep, ioErr("truncate", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return rep, ioErr("sync", path, err)
	}
	if err := f.Close(); err != nil {
		return rep, ioErr("close", path, err)
	}
	return rep, nil
}
