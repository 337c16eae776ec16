package event

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the consuming schema.
const (
	fieldEventWallTime    protowire.Number = 1
	fieldEventStep        protowire.Number = 2
	fieldEventFileVersion protowire.Number = 3
	fieldEventSummary     protowire.Number = 5

	fieldSummaryValue protowire.Number = 1

	fieldValueTag      protowire.Number = 1
	fieldValueSimple   protowire.Number = 2
	fieldValueImage    protowire.Number = 4
	fieldValueHisto    protowire.Number = 5
	fieldValueTensor   protowire.Number = 8
	fieldValueMetadata protowire.Number = 9

	fieldImageHeight     protowire.Number = 1
	fieldImageWidth      protowire.Number = 2
	fieldImageColorspace protowire.Number = 3
	fieldImageEncoded    protowire.Number = 4

	fieldHistoMin        protowire.Number = 1
	fieldHistoMax        protowire.Number = 2
	fieldHistoNum        protowire.Number = 3
	fieldHistoSum        protowire.Number = 4
	fieldHistoSumSquares protowire.Number = 5
	fieldHistoLimits     protowire.Number = 6
	fieldHistoBuckets    protowire.Number = 7

	fieldTensorDType   protowire.Number = 1
	fieldTensorShape   protowire.Number = 2
	fieldTensorDoubles protowire.Number = 6
	fieldTensorStrings protowire.Number = 8

	fieldShapeDim   protowire.Number = 2
	fieldDimSize    protowire.Number = 1
	fieldPluginData protowire.Number = 1
	fieldPluginName protowire.Number = 1
	fieldPluginBody protowire.Number = 2
)

// Encode serializes e.
func Encode(e Event) []byte {
	return AppendEvent(nil, e)
}

// AppendEvent appends the encoding of e to b.
func AppendEvent(b []byte, e Event) []byte {
	b = appendDouble(b, fieldEventWallTime, e.WallTime)
	if e.Step != 0 {
		b = protowire.AppendTag(b, fieldEventStep, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Step))
	}
	if e.FileVersion != "" {
		b = protowire.AppendTag(b, fieldEventFileVersion, protowire.BytesType)
		b = protowire.AppendString(b, e.FileVersion)
	}
	if e.Summary != nil {
		b = appendMessage(b, fieldEventSummary, appendSummary(nil, e.Summary))
	}
	return b
}

func appendSummary(b []byte, s *Summary) []byte {
	for i := range s.Values {
		b = appendMessage(b, fieldSummaryValue, appendValue(nil, &s.Values[i]))
	}
	return b
}

func appendValue(b []byte, v *Value) []byte {
	b = protowire.AppendTag(b, fieldValueTag, protowire.BytesType)
	b = protowire.AppendString(b, v.Tag)
	if v.Metadata != nil {
		b = appendMessage(b, fieldValueMetadata, appendMetadata(nil, v.Metadata))
	}
	switch v.Kind {
	case KindScalar:
		b = protowire.AppendTag(b, fieldValueSimple, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(float32(v.Scalar)))
	case KindImage:
		if v.Image != nil {
			b = appendMessage(b, fieldValueImage, appendImage(nil, v.Image))
		}
	case KindHistogram:
		if v.Histogram != nil {
			b = appendMessage(b, fieldValueHisto, appendHistogram(nil, v.Histogram))
		}
	case KindText:
		t := &Tensor{DType: DTString, Shape: []int64{1}, Strings: [][]byte{[]byte(v.Text)}}
		b = appendMessage(b, fieldValueTensor, appendTensor(nil, t))
	case KindTensor:
		if v.Tensor != nil {
			b = appendMessage(b, fieldValueTensor, appendTensor(nil, v.Tensor))
		}
	}
	return b
}

func appendMetadata(b []byte, m *Metadata) []byte {
	var pd []byte
	pd = protowire.AppendTag(pd, fieldPluginName, protowire.BytesType)
	pd = protowire.AppendString(pd, m.PluginName)
	if len(m.Content) > 0 {
		pd = protowire.AppendTag(pd, fieldPluginBody, protowire.BytesType)
		pd = protowire.AppendBytes(pd, m.Content)
	}
	return appendMessage(b, fieldPluginData, pd)
}

func appendImage(b []byte, img *Image) []byte {
	b = appendVarint(b, fieldImageHeight, uint64(img.Height))
	b = appendVarint(b, fieldImageWidth, uint64(img.Width))
	b = appendVarint(b, fieldImageColorspace, uint64(img.Colorspace))
	b = protowire.AppendTag(b, fieldImageEncoded, protowire.BytesType)
	return protowire.AppendBytes(b, img.Encoded)
}

func appendHistogram(b []byte, h *Histogram) []byte {
	b = appendDouble(b, fieldHistoMin, h.Min)
	b = appendDouble(b, fieldHistoMax, h.Max)
	b = appendDouble(b, fieldHistoNum, h.Num)
	b = appendDouble(b, fieldHistoSum, h.Sum)
	b = appendDouble(b, fieldHistoSumSquares, h.SumSquares)
	b = appendPackedDoubles(b, fieldHistoLimits, h.BucketLimits)
	return appendPackedDoubles(b, fieldHistoBuckets, h.Buckets)
}

func appendTensor(b []byte, t *Tensor) []byte {
	b = appendVarint(b, fieldTensorDType, uint64(t.DType))
	var shape []byte
	for _, d := range t.Shape {
		var dim []byte
		dim = appendVarint(dim, fieldDimSize, uint64(d))
		shape = appendMessage(shape, fieldShapeDim, dim)
	}
	b = appendMessage(b, fieldTensorShape, shape)
	b = appendPackedDoubles(b, fieldTensorDoubles, t.Doubles)
	for _, s := range t.Strings {
		b = protowire.AppendTag(b, fieldTensorStrings, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendPackedDoubles(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(len(vs)*8))
	for _, v := range vs {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}
