package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// JSONFormatter renders entries as one JSON object per line.
type JSONFormatter struct {
	TimestampFormat string
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	tf := f.TimestampFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	m := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		m[k] = v
	}
	m["time"] = entry.Timestamp.Format(tf)
	m["level"] = entry.Level.String()
	m["msg"] = entry.Message
	if entry.Error != nil {
		m["error"] = entry.Error.Error()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("log: json format: %w", err)
	}
	return append(b, '\n'), nil
}

// TextFormatter renders entries as "time LEVEL msg key=value ..." lines with
// keys sorted for stable output.
type TextFormatter struct {
	TimestampFormat  string
	DisableTimestamp bool
	ShowCaller       bool
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b strings.Builder
	if !f.DisableTimestamp {
		tf := f.TimestampFormat
		if tf == "" {
			tf = "2006-01-02T15:04:05.000Z07:00"
		}
		b.WriteString(entry.Timestamp.Format(tf))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", entry.Level.String(), entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, quoteValue(entry.Fields[k]))
	}
	if entry.Error != nil {
		fmt.Fprintf(&b, " error=%s", quoteValue(entry.Error.Error()))
	}
	if f.ShowCaller && entry.Caller != "" {
		fmt.Fprintf(&b, " caller=%s", entry.Caller)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func quoteValue(v interface{}) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
