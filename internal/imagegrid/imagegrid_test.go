package imagegrid

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"testing"
)

func TestValidateImage(t *testing.T) {
	cases := []struct {
		name   string
		shape  []int
		layout Layout
		ok     bool
	}{
		{"rgb last", []int{128, 128, 3}, ChannelsLast, true},
		{"gray last", []int{4, 5, 1}, ChannelsLast, true},
		{"rgba last", []int{2, 2, 4}, ChannelsLast, true},
		{"two channels", []int{128, 128, 2}, ChannelsLast, false},
		{"rgb first", []int{3, 128, 128}, ChannelsFirst, true},
		{"rgb first misread as last", []int{3, 128, 128}, ChannelsLast, false},
		{"rank 2", []int{128, 128}, ChannelsLast, false},
		{"zero height", []int{0, 128, 3}, ChannelsLast, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateImage(NewTensor(tc.shape...), tc.layout)
			if tc.ok {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidShape) {
				t.Fatalf("expected ErrInvalidShape, got %v", err)
			}
			var se *InvalidShapeError
			if !errors.As(err, &se) || se.Constraint == "" {
				t.Fatalf("expected constraint in error, got %v", err)
			}
		})
	}
}

func TestValidateDataLength(t *testing.T) {
	img := Tensor{Shape: []int{2, 2, 3}, Data: make([]float64, 11)}
	if err := ValidateImage(img, ChannelsLast); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
}

func TestValidateBatch(t *testing.T) {
	if err := ValidateBatch(NewTensor(5, 8, 8, 3), ChannelsLast); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := ValidateBatch(NewTensor(8, 8, 3), ChannelsLast); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("rank 3 batch accepted: %v", err)
	}
	if err := ValidateBatch(Tensor{Shape: []int{0, 8, 8, 3}}, ChannelsLast); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("empty batch accepted: %v", err)
	}
}

// fillBatch sets every element of image i to (i+1)/10.
func fillBatch(shape ...int) Tensor {
	b := NewTensor(shape...)
	per := len(b.Data) / shape[0]
	for i := range b.Data {
		b.Data[i] = float64(i/per+1) / 10
	}
	return b
}

func TestGridChannelsLast(t *testing.T) {
	const h, w, c = 2, 3, 1
	b := fillBatch(5, h, w, c)
	g, err := Grid(b, ChannelsLast, 2)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if !reflect.DeepEqual(g.Shape, []int{3 * h, 2 * w, c}) {
		t.Fatalf("shape = %v", g.Shape)
	}
	gw := 2 * w
	for r := 0; r < 3; r++ {
		for col := 0; col < 2; col++ {
			idx := r*2 + col
			want := 0.0
			if idx < 5 {
				want = float64(idx+1) / 10
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					got := g.Data[(r*h+y)*gw+col*w+x]
					if got != want {
						t.Fatalf("cell (%d,%d) pixel (%d,%d) = %v, want %v", r, col, y, x, got, want)
					}
				}
			}
		}
	}
}

func TestGridChannelsFirst(t *testing.T) {
	b := fillBatch(5, 3, 2, 2)
	g, err := Grid(b, ChannelsFirst, 2)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if !reflect.DeepEqual(g.Shape, []int{3, 6, 4}) {
		t.Fatalf("shape = %v", g.Shape)
	}
	// image 4 sits at row 2, column 0; its right neighbour is padding.
	for ch := 0; ch < 3; ch++ {
		if got := g.Data[ch*24+4*4+0]; got != 0.5 {
			t.Fatalf("channel %d image 4 = %v", ch, got)
		}
		if got := g.Data[ch*24+4*4+2]; got != 0 {
			t.Fatalf("channel %d padding = %v", ch, got)
		}
		if got := g.Data[ch*24+0*4+3]; got != 0.2 {
			t.Fatalf("channel %d image 1 = %v", ch, got)
		}
	}
}

func TestGridRejectsBadColumns(t *testing.T) {
	if _, err := Grid(fillBatch(2, 2, 2, 1), ChannelsLast, 0); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
}

func TestOverflowingShapes(t *testing.T) {
	cases := []struct {
		name string
		fn   func() error
	}{
		{"image size wraps", func() error {
			return ValidateImage(Tensor{Shape: []int{1 << 62, 4, 1}}, ChannelsLast)
		}},
		{"batch size wraps", func() error {
			return ValidateBatch(Tensor{Shape: []int{1 << 61, 2, 2, 1}}, ChannelsLast)
		}},
		{"pack wrapped image", func() error {
			_, err := Pack(Tensor{Shape: []int{1 << 62, 4, 1}}, ChannelsLast)
			return err
		}},
		{"columns overflow width", func() error {
			_, err := Grid(fillBatch(1, 2, 2, 1), ChannelsLast, 1<<62)
			return err
		}},
		{"max columns", func() error {
			_, err := Grid(fillBatch(1, 2, 2, 1), ChannelsLast, math.MaxInt)
			return err
		}},
		{"grid too large", func() error {
			_, err := Grid(fillBatch(1, 2, 2, 1), ChannelsLast, 1<<30)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			var se *InvalidShapeError
			if !errors.As(err, &se) || !errors.Is(err, ErrInvalidShape) {
				t.Fatalf("expected InvalidShapeError, got %v", err)
			}
		})
	}
}

func TestPackScaling(t *testing.T) {
	img := Tensor{Shape: []int{1, 6, 1}, Data: []float64{-1, 0, 0.5, 1, 2, math.NaN()}}
	p, err := Pack(img, ChannelsLast)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if want := []byte{0, 0, 127, 255, 255, 0}; !bytes.Equal(p.Pix, want) {
		t.Fatalf("pix = %v, want %v", p.Pix, want)
	}
}

func TestPackChannelsFirstInterleaves(t *testing.T) {
	// 3 channels, 1x2 image: R=[1,0] G=[0,1] B=[0,0]
	img := Tensor{Shape: []int{3, 1, 2}, Data: []float64{1, 0, 0, 1, 0, 0}}
	p, err := Pack(img, ChannelsFirst)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if p.Width != 2 || p.Height != 1 || p.Channels != 3 {
		t.Fatalf("geometry = %dx%dx%d", p.Width, p.Height, p.Channels)
	}
	if want := []byte{255, 0, 0, 0, 255, 0}; !bytes.Equal(p.Pix, want) {
		t.Fatalf("pix = %v, want %v", p.Pix, want)
	}
}

func TestPNGEncoder(t *testing.T) {
	cases := []struct {
		name string
		img  Image
		at   color.Color
	}{
		{"gray", Image{Width: 2, Height: 1, Channels: 1, Pix: []byte{10, 200}}, color.Gray{Y: 200}},
		{"rgb", Image{Width: 2, Height: 1, Channels: 3, Pix: []byte{1, 2, 3, 4, 5, 6}}, color.NRGBA{R: 4, G: 5, B: 6, A: 255}},
		{"rgba", Image{Width: 2, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 255, 4, 5, 6, 255}}, color.NRGBA{R: 4, G: 5, B: 6, A: 255}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := PNGEncoder{}.Encode(tc.img)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			m, err := png.Decode(bytes.NewReader(b))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if m.Bounds().Dx() != 2 || m.Bounds().Dy() != 1 {
				t.Fatalf("bounds = %v", m.Bounds())
			}
			gr, gg, gb, ga := m.At(1, 0).RGBA()
			wr, wg, wb, wa := tc.at.RGBA()
			if gr != wr || gg != wg || gb != wb || ga != wa {
				t.Fatalf("pixel = %v, want %v", m.At(1, 0), tc.at)
			}
		})
	}
}

func TestPNGEncoderRejectsShortBuffer(t *testing.T) {
	if _, err := (PNGEncoder{}).Encode(Image{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 5)}); err == nil {
		t.Fatalf("expected error")
	}
}
