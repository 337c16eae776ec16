package imagegrid

import "math"

// Layout selects the position of the channel axis.
type Layout int

const (
	ChannelsLast Layout = iota
	ChannelsFirst
)

func (l Layout) String() string {
	switch l {
	case ChannelsLast:
		return "channels_last"
	case ChannelsFirst:
		return "channels_first"
	default:
		return "unknown"
	}
}

// Tensor is a dense row-major float array.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor allocates a zero tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return Tensor{Shape: s, Data: make([]float64, n)}
}

// MaxGridElements bounds the values of a composed grid.
const MaxGridElements = 1 << 28

// mul returns a*b for non-negative operands, or false when the product does
// not fit in an int.
func mul(a, b int) (int, bool) {
	if a != 0 && b > math.MaxInt/a {
		return 0, false
	}
	return a * b, true
}

// size returns the element count of the shape, or false on overflow.
func (t Tensor) size() (int, bool) {
	n := 1
	for _, d := range t.Shape {
		var ok bool
		if n, ok = mul(n, d); !ok {
			return 0, false
		}
	}
	return n, true
}

// dims returns height, width and channels of an image shape (rank 3).
func dims(shape []int, layout Layout) (h, w, c int) {
	if layout == ChannelsFirst {
		return shape[1], shape[2], shape[0]
	}
	return shape[0], shape[1], shape[2]
}

func validChannels(c int) bool { return c == 1 || c == 3 || c == 4 }

func validate(t Tensor, layout Layout, img []int) error {
	if layout != ChannelsLast && layout != ChannelsFirst {
		return invalid(t.Shape, layout, "unknown layout")
	}
	for i, d := range t.Shape {
		if d <= 0 {
			return invalid(t.Shape, layout, "dimension %d must be positive", i)
		}
	}
	h, w, c := dims(img, layout)
	if h <= 0 || w <= 0 {
		return invalid(t.Shape, layout, "spatial dimensions must be positive")
	}
	if !validChannels(c) {
		return invalid(t.Shape, layout, "channel count %d not in {1, 3, 4}", c)
	}
	n, ok := t.size()
	if !ok {
		return invalid(t.Shape, layout, "shape size overflows int")
	}
	if len(t.Data) != n {
		return invalid(t.Shape, layout, "data length %d does not match shape size %d", len(t.Data), n)
	}
	return nil
}

// ValidateImage checks a rank-3 image tensor.
func ValidateImage(t Tensor, layout Layout) error {
	if len(t.Shape) != 3 {
		return invalid(t.Shape, layout, "image must have rank 3, got %d", len(t.Shape))
	}
	return validate(t, layout, t.Shape)
}

// ValidateBatch checks a rank-4 batch tensor with at least one image.
func ValidateBatch(t Tensor, layout Layout) error {
	if len(t.Shape) != 4 {
		return invalid(t.Shape, layout, "batch must have rank 4, got %d", len(t.Shape))
	}
	if t.Shape[0] <= 0 {
		return invalid(t.Shape, layout, "batch must contain at least one image")
	}
	return validate(t, layout, t.Shape[1:])
}

// Grid tiles a batch row-major into one image, colSize images per row. The
// batch is padded with zero images up to a multiple of colSize. The result
// keeps the input layout.
func Grid(batch Tensor, layout Layout, colSize int) (Tensor, error) {
	if err := ValidateBatch(batch, layout); err != nil {
		return Tensor{}, err
	}
	if colSize <= 0 {
		return Tensor{}, invalid(batch.Shape, layout, "column size %d must be positive", colSize)
	}
	n := batch.Shape[0]
	h, w, c := dims(batch.Shape[1:], layout)
	rows := (n-1)/colSize + 1
	gh, okh := mul(rows, h)
	gw, okw := mul(colSize, w)
	if !okh || !okw {
		return Tensor{}, invalid(batch.Shape, layout, "grid of %d columns overflows int", colSize)
	}
	if total, ok := mul(gh, gw); !ok || total > MaxGridElements/c {
		return Tensor{}, invalid(batch.Shape, layout, "grid of %d columns exceeds %d values", colSize, MaxGridElements)
	}

	var out Tensor
	if layout == ChannelsFirst {
		out = NewTensor(c, gh, gw)
	} else {
		out = NewTensor(gh, gw, c)
	}
	per := h * w * c
	for i := 0; i < n; i++ {
		src := batch.Data[i*per : (i+1)*per]
		oy, ox := (i/colSize)*h, (i%colSize)*w
		if layout == ChannelsFirst {
			for ch := 0; ch < c; ch++ {
				for y := 0; y < h; y++ {
					row := ch*gh*gw + (oy+y)*gw + ox
					copy(out.Data[row:row+w], src[ch*h*w+y*w:ch*h*w+(y+1)*w])
				}
			}
			continue
		}
		for y := 0; y < h; y++ {
			row := ((oy+y)*gw + ox) * c
			copy(out.Data[row:row+w*c], src[y*w*c:(y+1)*w*c])
		}
	}
	return out, nil
}

// Image is an 8-bit interleaved (HWC) pixel buffer.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// Pack converts an image tensor to 8-bit interleaved pixels.
func Pack(t Tensor, layout Layout) (Image, error) {
	if err := ValidateImage(t, layout); err != nil {
		return Image{}, err
	}
	h, w, c := dims(t.Shape, layout)
	img := Image{Width: w, Height: h, Channels: c, Pix: make([]byte, h*w*c)}
	if layout == ChannelsLast {
		for i, v := range t.Data {
			img.Pix[i] = toByte(v)
		}
		return img, nil
	}
	for ch := 0; ch < c; ch++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Pix[(y*w+x)*c+ch] = toByte(t.Data[ch*h*w+y*w+x])
			}
		}
	}
	return img, nil
}

func toByte(v float64) byte {
	if math.IsNaN(v) {
		return 0
	}
	v *= 255
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}
