// Package projector writes embedding side files for the TensorBoard projector:
// a tensor TSV, an optional label TSV and sprite image, and an entry appended
// to <logdir>/projector_config.pbtxt.
package projector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rzbill/tbx/internal/imagegrid"
	"github.com/spf13/afero"
)

// ConfigFile is the projector configuration file name inside a log directory.
const ConfigFile = "projector_config.pbtxt"

// maxSpriteDim is the largest sprite edge the projector loads.
const maxSpriteDim = 8192

// ErrInvalidEmbedding is matched by embedding validation failures.
var ErrInvalidEmbedding = errors.New("invalid embedding")

// Embedding is one N×D matrix with optional per-row labels and thumbnails.
type Embedding struct {
	Tag    string
	Step   int64
	Matrix [][]float64
	// Labels has one entry per row when set.
	Labels []string
	// LabelImages is a batch of N images, one per row, when set.
	LabelImages *imagegrid.Tensor
	Layout      imagegrid.Layout
}

// Entry is one "embeddings" block of the projector configuration. Paths are
// relative to the log directory.
type Entry struct {
	TensorName   string
	TensorPath   string
	MetadataPath string
	SpritePath   string
	// ImageDims is the thumbnail height and width when SpritePath is set.
	ImageDims [2]int
}

// Format renders the entry in protobuf text format.
func (e Entry) Format() string {
	var b strings.Builder
	b.WriteString("embeddings {\n")
	fmt.Fprintf(&b, "tensor_name: %s\n", strconv.Quote(e.TensorName))
	fmt.Fprintf(&b, "tensor_path: %s\n", strconv.Quote(e.TensorPath))
	if e.MetadataPath != "" {
		fmt.Fprintf(&b, "metadata_path: %s\n", strconv.Quote(e.MetadataPath))
	}
	if e.SpritePath != "" {
		b.WriteString("sprite {\n")
		fmt.Fprintf(&b, "image_path: %s\n", strconv.Quote(e.SpritePath))
		fmt.Fprintf(&b, "single_image_dim: %d\n", e.ImageDims[0])
		fmt.Fprintf(&b, "single_image_dim: %d\n", e.ImageDims[1])
		b.WriteString("}\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// Writer writes embeddings below one log directory. It is safe for
// concurrent use.
type Writer struct {
	fs     afero.Fs
	logdir string
	enc    imagegrid.Encoder

	mu sync.Mutex
}

// New returns a Writer. A nil encoder means PNG.
func New(fs afero.Fs, logdir string, enc imagegrid.Encoder) *Writer {
	if enc == nil {
		enc = imagegrid.PNGEncoder{}
	}
	return &Writer{fs: fs, logdir: logdir, enc: enc}
}

// Subdir returns the directory of an embedding relative to the log directory.
func Subdir(tag string, step int64) string {
	return path.Join(fmt.Sprintf("%05d", step), url.PathEscape(tag))
}

func validate(e Embedding) (n, d int, err error) {
	n = len(e.Matrix)
	if n == 0 {
		return 0, 0, fmt.Errorf("projector: %w: no rows", ErrInvalidEmbedding)
	}
	d = len(e.Matrix[0])
	if d == 0 {
		return 0, 0, fmt.Errorf("projector: %w: zero-width rows", ErrInvalidEmbedding)
	}
	for i, row := range e.Matrix {
		if len(row) != d {
			return 0, 0, fmt.Errorf("projector: %w: row %d has %d columns, want %d", ErrInvalidEmbedding, i, len(row), d)
		}
	}
	if e.Labels != nil && len(e.Labels) != n {
		return 0, 0, fmt.Errorf("projector: %w: %d labels for %d rows", ErrInvalidEmbedding, len(e.Labels), n)
	}
	if e.LabelImages != nil {
		if err := imagegrid.ValidateBatch(*e.LabelImages, e.Layout); err != nil {
			return 0, 0, err
		}
		if e.LabelImages.Shape[0] != n {
			return 0, 0, fmt.Errorf("projector: %w: %d label images for %d rows", ErrInvalidEmbedding, e.LabelImages.Shape[0], n)
		}
	}
	return n, d, nil
}

// Write validates e, writes its side files and appends its configuration
// entry. Nothing is written when validation fails.
func (w *Writer) Write(e Embedding) (Entry, error) {
	n, _, err := validate(e)
	if err != nil {
		return Entry{}, err
	}
	var sprite []byte
	var dims [2]int
	if e.LabelImages != nil {
		sprite, dims, err = w.sprite(*e.LabelImages, e.Layout, n)
		if err != nil {
			return Entry{}, err
		}
	}

	sub := Subdir(e.Tag, e.Step)
	dir := filepath.Join(w.logdir, filepath.FromSlash(sub))
	entry := Entry{
		TensorName: fmt.Sprintf("%s:%05d", e.Tag, e.Step),
		TensorPath: path.Join(sub, "tensors.tsv"),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("projector: mkdir %s: %w", dir, err)
	}
	if err := w.writeTSV(filepath.Join(dir, "tensors.tsv"), matrixRows(e.Matrix)); err != nil {
		return Entry{}, err
	}
	if e.Labels != nil {
		rows := make([][]string, len(e.Labels))
		for i, l := range e.Labels {
			rows[i] = []string{sanitize(l)}
		}
		if err := w.writeTSV(filepath.Join(dir, "metadata.tsv"), rows); err != nil {
			return Entry{}, err
		}
		entry.MetadataPath = path.Join(sub, "metadata.tsv")
	}
	if sprite != nil {
		p := filepath.Join(dir, "sprite.png")
		if err := afero.WriteFile(w.fs, p, sprite, 0o644); err != nil {
			return Entry{}, fmt.Errorf("projector: write %s: %w", p, err)
		}
		entry.SpritePath = path.Join(sub, "sprite.png")
		entry.ImageDims = dims
	}
	if err := w.appendConfig(entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// sprite tiles the label images into a square grid of ceil(sqrt(n)) columns.
func (w *Writer) sprite(batch imagegrid.Tensor, layout imagegrid.Layout, n int) ([]byte, [2]int, error) {
	var h, wd int
	if layout == imagegrid.ChannelsFirst {
		h, wd = batch.Shape[2], batch.Shape[3]
	} else {
		h, wd = batch.Shape[1], batch.Shape[2]
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	if cols*h > maxSpriteDim || cols*wd > maxSpriteDim {
		return nil, [2]int{}, fmt.Errorf("projector: %w: sprite of %dx%d thumbnails exceeds %d pixels", ErrInvalidEmbedding, h, wd, maxSpriteDim)
	}
	square := padBatch(batch, cols*cols)
	grid, err := imagegrid.Grid(square, layout, cols)
	if err != nil {
		return nil, [2]int{}, err
	}
	img, err := imagegrid.Pack(grid, layout)
	if err != nil {
		return nil, [2]int{}, err
	}
	b, err := w.enc.Encode(img)
	if err != nil {
		return nil, [2]int{}, fmt.Errorf("projector: encode sprite: %w", err)
	}
	return b, [2]int{h, wd}, nil
}

// padBatch extends a batch with zero images up to total.
func padBatch(b imagegrid.Tensor, total int) imagegrid.Tensor {
	if b.Shape[0] >= total {
		return b
	}
	shape := append([]int{total}, b.Shape[1:]...)
	out := imagegrid.NewTensor(shape...)
	copy(out.Data, b.Data)
	return out
}

func matrixRows(m [][]float64) [][]string {
	rows := make([][]string, len(m))
	for i, r := range m {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		rows[i] = row
	}
	return rows
}

// sanitize keeps a label on one TSV cell.
func sanitize(s string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}

func (w *Writer) writeTSV(p string, rows [][]string) error {
	f, err := w.fs.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("projector: create %s: %w", p, err)
	}
	cw := csv.NewWriter(f)
	cw.Comma = '\t'
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("projector: write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("projector: close %s: %w", p, err)
	}
	return nil
}

func (w *Writer) appendConfig(e Entry) error {
	p := filepath.Join(w.logdir, ConfigFile)
	f, err := w.fs.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("projector: open %s: %w", p, err)
	}
	if _, err := f.WriteString(e.Format()); err != nil {
		f.Close()
		return fmt.Errorf("projector: append %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("projector: close %s: %w", p, err)
	}
	return nil
}

// ReadTSV reads a tab-separated side file.
func ReadTSV(fs afero.Fs, p string) ([][]string, error) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("projector: open %s: %w", p, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("projector: read %s: %w", p, err)
	}
	return rows, nil
}
