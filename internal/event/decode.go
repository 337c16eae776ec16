package event

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned (wrapped) for payloads that are not valid encodings.
var ErrMalformed = errors.New("malformed event")

// fieldFunc handles one field. It returns the number of bytes consumed from b,
// or -1 to let the walker skip the field.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func parseErr(num protowire.Number, n int) error {
	return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
}

// Decode parses an encoded Event. Unknown fields are skipped.
func Decode(b []byte) (Event, error) {
	var e Event
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldEventWallTime && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			e.WallTime = math.Float64frombits(v)
			return n, nil
		case num == fieldEventStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			e.Step = int64(v)
			return n, nil
		case num == fieldEventFileVersion && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			e.FileVersion = string(v)
			return n, nil
		case num == fieldEventSummary && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			s, err := decodeSummary(v)
			if err != nil {
				return 0, err
			}
			e.Summary = s
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return Event{}, fmt.Errorf("event: decode: %w", err)
	}
	return e, nil
}

func decodeSummary(b []byte) (*Summary, error) {
	s := &Summary{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldSummaryValue || typ != protowire.BytesType {
			return -1, nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseErr(num, n)
		}
		val, err := decodeValue(v)
		if err != nil {
			return 0, err
		}
		s.Values = append(s.Values, val)
		return n, nil
	})
	return s, err
}

func decodeValue(b []byte) (Value, error) {
	var v Value
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldValueSimple && typ == protowire.Fixed32Type {
			x, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			v.Kind = KindScalar
			v.Scalar = float64(math.Float32frombits(x))
			return n, nil
		}
		if typ != protowire.BytesType {
			return -1, nil
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseErr(num, n)
		}
		var err error
		switch num {
		case fieldValueTag:
			v.Tag = string(raw)
		case fieldValueImage:
			v.Kind = KindImage
			v.Image, err = decodeImage(raw)
		case fieldValueHisto:
			v.Kind = KindHistogram
			v.Histogram, err = decodeHistogram(raw)
		case fieldValueTensor:
			v.Kind = KindTensor
			v.Tensor, err = decodeTensor(raw)
		case fieldValueMetadata:
			v.Metadata, err = decodeMetadata(raw)
		}
		return n, err
	})
	if err != nil {
		return Value{}, err
	}
	// A string tensor tagged for the text plugin is a text value.
	if v.Kind == KindTensor && v.Metadata != nil && v.Metadata.PluginName == "text" &&
		v.Tensor.DType == DTString && len(v.Tensor.Strings) == 1 {
		v.Kind = KindText
		v.Text = string(v.Tensor.Strings[0])
		v.Tensor = nil
	}
	return v, nil
}

func decodeMetadata(b []byte) (*Metadata, error) {
	m := &Metadata{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldPluginData || typ != protowire.BytesType {
			return -1, nil
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseErr(num, n)
		}
		err := walk(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if typ != protowire.BytesType || (num != fieldPluginName && num != fieldPluginBody) {
				return -1, nil
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			if num == fieldPluginName {
				m.PluginName = string(v)
			} else {
				m.Content = append([]byte(nil), v...)
			}
			return n, nil
		})
		return n, err
	})
	return m, err
}

func decodeImage(b []byte) (*Image, error) {
	img := &Image{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case typ == protowire.VarintType && num >= fieldImageHeight && num <= fieldImageColorspace:
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			switch num {
			case fieldImageHeight:
				img.Height = int(x)
			case fieldImageWidth:
				img.Width = int(x)
			default:
				img.Colorspace = int(x)
			}
			return n, nil
		case num == fieldImageEncoded && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			img.Encoded = append([]byte(nil), x...)
			return n, nil
		}
		return -1, nil
	})
	return img, err
}

func decodeHistogram(b []byte) (*Histogram, error) {
	h := &Histogram{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *float64
		switch num {
		case fieldHistoMin:
			dst = &h.Min
		case fieldHistoMax:
			dst = &h.Max
		case fieldHistoNum:
			dst = &h.Num
		case fieldHistoSum:
			dst = &h.Sum
		case fieldHistoSumSquares:
			dst = &h.SumSquares
		case fieldHistoLimits:
			return consumeDoubles(num, typ, b, &h.BucketLimits)
		case fieldHistoBuckets:
			return consumeDoubles(num, typ, b, &h.Buckets)
		}
		if dst == nil || typ != protowire.Fixed64Type {
			return -1, nil
		}
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return 0, parseErr(num, n)
		}
		*dst = math.Float64frombits(x)
		return n, nil
	})
	return h, err
}

func decodeTensor(b []byte) (*Tensor, error) {
	t := &Tensor{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldTensorDType && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			t.DType = DataType(x)
			return n, nil
		case num == fieldTensorShape && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			shape, err := decodeShape(raw)
			t.Shape = shape
			return n, err
		case num == fieldTensorDoubles:
			return consumeDoubles(num, typ, b, &t.Doubles)
		case num == fieldTensorStrings && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			t.Strings = append(t.Strings, append([]byte(nil), raw...))
			return n, nil
		}
		return -1, nil
	})
	return t, err
}

func decodeShape(b []byte) ([]int64, error) {
	var dims []int64
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldShapeDim || typ != protowire.BytesType {
			return -1, nil
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseErr(num, n)
		}
		var size int64
		err := walk(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num != fieldDimSize || typ != protowire.VarintType {
				return -1, nil
			}
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, parseErr(num, n)
			}
			size = int64(x)
			return n, nil
		})
		dims = append(dims, size)
		return n, err
	})
	return dims, err
}

// consumeDoubles accepts both packed and unpacked repeated doubles.
func consumeDoubles(num protowire.Number, typ protowire.Type, b []byte, dst *[]float64) (int, error) {
	switch typ {
	case protowire.Fixed64Type:
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return 0, parseErr(num, n)
		}
		*dst = append(*dst, math.Float64frombits(x))
		return n, nil
	case protowire.BytesType:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, parseErr(num, n)
		}
		if len(raw)%8 != 0 {
			return 0, fmt.Errorf("%w: field %d: packed doubles length %d", ErrMalformed, num, len(raw))
		}
		for len(raw) > 0 {
			x, m := protowire.ConsumeFixed64(raw)
			*dst = append(*dst, math.Float64frombits(x))
			raw = raw[m:]
		}
		return n, nil
	}
	return -1, nil
}
