package projector

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/rzbill/tbx/internal/imagegrid"
	"github.com/spf13/afero"
)

func TestWriteEmbedding(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := New(fs, "logs", nil)

	thumbs := imagegrid.NewTensor(3, 4, 5, 1)
	for i := range thumbs.Data {
		thumbs.Data[i] = 1
	}
	entry, err := w.Write(Embedding{
		Tag:         "features",
		Step:        5,
		Matrix:      [][]float64{{1, 2.5}, {-3, 0}, {1e-9, 4}},
		Labels:      []string{"cat", "dog\tpuppy", "bird"},
		LabelImages: &thumbs,
		Layout:      imagegrid.ChannelsLast,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if entry.TensorName != "features:00005" || entry.TensorPath != "00005/features/tensors.tsv" {
		t.Fatalf("entry = %+v", entry)
	}

	rows, err := ReadTSV(fs, "logs/00005/features/tensors.tsv")
	if err != nil {
		t.Fatalf("read tensors: %v", err)
	}
	if len(rows) != 3 || rows[0][1] != "2.5" || rows[2][0] != "1e-09" {
		t.Fatalf("tensors = %v", rows)
	}
	labels, err := ReadTSV(fs, "logs/00005/features/metadata.tsv")
	if err != nil {
		t.Fatalf("read labels: %v", err)
	}
	if len(labels) != 3 || labels[1][0] != "dog puppy" {
		t.Fatalf("labels = %v", labels)
	}

	b, err := afero.ReadFile(fs, "logs/00005/features/sprite.png")
	if err != nil {
		t.Fatalf("read sprite: %v", err)
	}
	m, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode sprite: %v", err)
	}
	// 3 thumbnails -> 2x2 grid of 4x5
	if m.Bounds().Dx() != 10 || m.Bounds().Dy() != 8 {
		t.Fatalf("sprite bounds = %v", m.Bounds())
	}

	cfg, err := afero.ReadFile(fs, "logs/"+ConfigFile)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	for _, want := range []string{
		`tensor_name: "features:00005"`,
		`metadata_path: "00005/features/metadata.tsv"`,
		`image_path: "00005/features/sprite.png"`,
		"single_image_dim: 4\nsingle_image_dim: 5\n",
	} {
		if !strings.Contains(string(cfg), want) {
			t.Fatalf("config missing %q:\n%s", want, cfg)
		}
	}
}

func TestConfigAppends(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := New(fs, "logs", nil)
	for step := int64(0); step < 2; step++ {
		if _, err := w.Write(Embedding{Tag: "emb", Step: step, Matrix: [][]float64{{1}}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	cfg, _ := afero.ReadFile(fs, "logs/"+ConfigFile)
	if n := strings.Count(string(cfg), "embeddings {"); n != 2 {
		t.Fatalf("entries = %d\n%s", n, cfg)
	}
	if strings.Contains(string(cfg), "metadata_path") {
		t.Fatalf("unexpected metadata path without labels:\n%s", cfg)
	}
}

func TestTagEscaping(t *testing.T) {
	if got := Subdir("layer 1/out", 12); got != "00012/layer%201%2Fout" {
		t.Fatalf("subdir = %q", got)
	}
}

func TestValidationWritesNothing(t *testing.T) {
	cases := []struct {
		name string
		e    Embedding
		want error
	}{
		{"empty", Embedding{Tag: "e"}, ErrInvalidEmbedding},
		{"ragged", Embedding{Tag: "e", Matrix: [][]float64{{1, 2}, {3}}}, ErrInvalidEmbedding},
		{"labels", Embedding{Tag: "e", Matrix: [][]float64{{1}}, Labels: []string{"a", "b"}}, ErrInvalidEmbedding},
		{"image shape", Embedding{Tag: "e", Matrix: [][]float64{{1}}, LabelImages: &imagegrid.Tensor{Shape: []int{1, 4, 4, 2}, Data: make([]float64, 32)}}, imagegrid.ErrInvalidShape},
		{"image count", Embedding{Tag: "e", Matrix: [][]float64{{1}}, LabelImages: func() *imagegrid.Tensor { x := imagegrid.NewTensor(2, 4, 4, 1); return &x }()}, ErrInvalidEmbedding},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if _, err := New(fs, "logs", nil).Write(tc.e); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if ok, _ := afero.Exists(fs, "logs/"+ConfigFile); ok {
				t.Fatalf("config written for invalid embedding")
			}
		})
	}
}
