package imagegrid

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Encoder turns packed pixels into an encoded image.
type Encoder interface {
	Encode(img Image) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(img Image) ([]byte, error)

func (f EncoderFunc) Encode(img Image) ([]byte, error) { return f(img) }

// PNGEncoder encodes grayscale, RGB and RGBA images as PNG.
type PNGEncoder struct {
	Level png.CompressionLevel
}

func (e PNGEncoder) Encode(img Image) ([]byte, error) {
	if len(img.Pix) != img.Width*img.Height*img.Channels {
		return nil, fmt.Errorf("imagegrid: png: pixel buffer has %d bytes, want %d", len(img.Pix), img.Width*img.Height*img.Channels)
	}
	rect := image.Rect(0, 0, img.Width, img.Height)
	var m image.Image
	switch img.Channels {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, img.Pix)
		m = g
	case 3:
		n := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(img.Pix); i, j = i+3, j+4 {
			n.Pix[j], n.Pix[j+1], n.Pix[j+2], n.Pix[j+3] = img.Pix[i], img.Pix[i+1], img.Pix[i+2], 0xff
		}
		m = n
	case 4:
		n := image.NewNRGBA(rect)
		copy(n.Pix, img.Pix)
		m = n
	default:
		return nil, fmt.Errorf("imagegrid: png: unsupported channel count %d", img.Channels)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: e.Level}
	if err := enc.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("imagegrid: png: %w", err)
	}
	return buf.Bytes(), nil
}
