package summary

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

func markdownBreaks(text string) string {
	return strings.ReplaceAll(text, "\n", "  \n")
}

// AddJSONText writes v as indented JSON rendered verbatim by the markdown
// text plugin: spaces become non-breaking and newlines hard breaks.
func (w *Writer) AddJSONText(tag string, v any, opts ...RecordOption) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("summary: json text %q: %w", tag, err)
	}
	text := strings.ReplaceAll(string(b), " ", "&nbsp;")
	return w.AddText(tag, text, true, opts...)
}

// Parameter is one named set of values, such as the weights of a layer.
type Parameter struct {
	Name   string
	Values []float64
}

// HistogramSource is anything that exposes parameters worth a histogram,
// typically a model layer.
type HistogramSource interface {
	Parameters() []Parameter
}

// Parameters adapts a map of named values to HistogramSource. Names are
// written in sorted order.
type Parameters map[string][]float64

func (p Parameters) Parameters() []Parameter {
	out := make([]Parameter, 0, len(p))
	for name, v := range p {
		out = append(out, Parameter{Name: name, Values: v})
	}
	sortParameters(out)
	return out
}

func sortParameters(ps []Parameter) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
}

// AddHistograms writes one histogram per parameter of src, tagged
// "<tag>.<name>".
func (w *Writer) AddHistograms(tag string, src HistogramSource, opts ...RecordOption) error {
	for _, p := range src.Parameters() {
		if err := w.AddHistogram(tag+"."+p.Name, p.Values, opts...); err != nil {
			return err
		}
	}
	return nil
}
