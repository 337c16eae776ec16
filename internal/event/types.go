package event

// FileVersion is written in the first event of every file.
const FileVersion = "brain.Event:2"

// Kind identifies which member of the Value union is set.
type Kind int

const (
	KindUnknown Kind = iota
	KindScalar
	KindImage
	KindHistogram
	KindText
	KindTensor
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindImage:
		return "image"
	case KindHistogram:
		return "histogram"
	case KindText:
		return "text"
	case KindTensor:
		return "tensor"
	default:
		return "unknown"
	}
}

// DataType mirrors the TensorFlow DataType enum values used here.
type DataType int32

const (
	DTFloat  DataType = 1
	DTDouble DataType = 2
	DTString DataType = 7
)

// Event is one timestamped unit of telemetry. Step 0 is encoded as absent,
// which is what readers observe for events written without a step.
type Event struct {
	WallTime    float64
	Step        int64
	FileVersion string
	Summary     *Summary
}

// Value is one tagged entry of a Summary.
type Value struct {
	Tag       string
	Kind      Kind
	Scalar    float64
	Text      string
	Image     *Image
	Histogram *Histogram
	Tensor    *Tensor
	Metadata  *Metadata
}

// Image holds an encoded (PNG) image and its geometry.
type Image struct {
	Height     int
	Width      int
	Colorspace int
	Encoded    []byte
}

// Histogram is the HistogramProto payload. BucketLimits[i] is the right edge
// of Buckets[i].
type Histogram struct {
	Min          float64
	Max          float64
	Num          float64
	Sum          float64
	SumSquares   float64
	BucketLimits []float64
	Buckets      []float64
}

// Tensor is the subset of TensorProto used by the writer.
type Tensor struct {
	DType   DataType
	Shape   []int64
	Doubles []float64
	Strings [][]byte
}

// Metadata is SummaryMetadata; only plugin data is interpreted by readers.
type Metadata struct {
	PluginName string
	Content    []byte
}

// Summary is an ordered collection of values keyed by tag.
type Summary struct {
	Values []Value
}

// Set stores v under v.Tag. A value with the same tag is replaced in place,
// so the last write wins and the first position is kept.
func (s *Summary) Set(v Value) {
	for i := range s.Values {
		if s.Values[i].Tag == v.Tag {
			s.Values[i] = v
			return
		}
	}
	s.Values = append(s.Values, v)
}

// Get returns the value stored for tag.
func (s *Summary) Get(tag string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	for _, v := range s.Values {
		if v.Tag == tag {
			return v, true
		}
	}
	return Value{}, false
}

// Len returns the number of values.
func (s *Summary) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Scalar builds a scalar value.
func Scalar(tag string, v float64) Value {
	return Value{Tag: tag, Kind: KindScalar, Scalar: v}
}

// Text builds a text value rendered by the text plugin.
func Text(tag, text string) Value {
	return Value{Tag: tag, Kind: KindText, Text: text, Metadata: &Metadata{PluginName: "text"}}
}

// ImageValue builds an image value.
func ImageValue(tag string, img *Image) Value {
	return Value{Tag: tag, Kind: KindImage, Image: img}
}

// HistogramValue builds a histogram value.
func HistogramValue(tag string, h *Histogram) Value {
	return Value{Tag: tag, Kind: KindHistogram, Histogram: h}
}

// TensorValue builds a raw tensor value.
func TensorValue(tag string, t *Tensor) Value {
	return Value{Tag: tag, Kind: KindTensor, Tensor: t}
}
