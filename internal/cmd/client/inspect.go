package client

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rzbill/tbx/internal/event"
	"github.com/rzbill/tbx/internal/eventfile"
	"github.com/rzbill/tbx/internal/filter"
)

// inspectRow is one summary value (or header event) of an event file.
type inspectRow struct {
	File        string   `json:"file" yaml:"file"`
	Offset      int64    `json:"offset" yaml:"offset"`
	Step        int64    `json:"step" yaml:"step"`
	WallTime    float64  `json:"wall_time" yaml:"wall_time"`
	FileVersion string   `json:"file_version,omitempty" yaml:"file_version,omitempty"`
	Tag         string   `json:"tag,omitempty" yaml:"tag,omitempty"`
	Kind        string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Value       *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Text        string   `json:"text,omitempty" yaml:"text,omitempty"`
	Detail      string   `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func (r inspectRow) input(size int) filter.Input {
	in := filter.Input{File: r.File, Offset: r.Offset, Size: size, Step: r.Step,
		WallTime: r.WallTime, Tag: r.Tag, Kind: r.Kind, Text: r.Text}
	if r.Value != nil {
		in.Value = *r.Value
	}
	return in
}

func describe(v event.Value) string {
	switch v.Kind {
	case event.KindImage:
		if v.Image != nil {
			return fmt.Sprintf("%dx%dx%d png %dB", v.Image.Height, v.Image.Width, v.Image.Colorspace, len(v.Image.Encoded))
		}
	case event.KindHistogram:
		if h := v.Histogram; h != nil {
			return fmt.Sprintf("n=%g min=%g max=%g buckets=%d", h.Num, h.Min, h.Max, len(h.Buckets))
		}
	case event.KindTensor:
		if t := v.Tensor; t != nil {
			return fmt.Sprintf("shape=%v", t.Shape)
		}
	}
	return ""
}

// rowsOf flattens one record into rows, one per summary value.
func rowsOf(file string, rec eventfile.Record) []inspectRow {
	ev := rec.Event
	base := inspectRow{File: file, Offset: rec.Offset, Step: ev.Step, WallTime: ev.WallTime, FileVersion: ev.FileVersion}
	if ev.Summary.Len() == 0 {
		return []inspectRow{base}
	}
	rows := make([]inspectRow, 0, ev.Summary.Len())
	for _, v := range ev.Summary.Values {
		r := base
		r.Tag = v.Tag
		r.Kind = v.Kind.String()
		switch v.Kind {
		case event.KindScalar:
			val := v.Scalar
			r.Value = &val
		case event.KindText:
			r.Text = v.Text
		default:
			r.Detail = describe(v)
		}
		rows = append(rows, r)
	}
	return rows
}

// NewInspectCommand constructs the `inspect` command.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect PATH...",
		Short: "Print the events of event files or log directories",
		Long: "Print the events of event files or log directories, one row per summary value.\n" +
			"--filter takes a CEL expression over file, offset, size, step, wall_time, tag,\n" +
			"kind, value, text and now, e.g. 'kind == \"scalar\" && step >= 100'.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, _ := cmd.Flags().GetString("filter")
			format, _ := cmd.Flags().GetString("format")
			limit, _ := cmd.Flags().GetInt("limit")
			f, err := filter.Compile(expr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			fs := afero.NewOsFs()
			files, err := collectFiles(fs, args)
			if err != nil {
				return err
			}

			var rows []inspectRow
		files:
			for _, path := range files {
				fh, err := fs.Open(path)
				if err != nil {
					return err
				}
				r := eventfile.NewReader(fh)
				for {
					rec, err := r.Next()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
						break
					}
					for _, row := range rowsOf(path, rec) {
						if !f.Match(row.input(rec.Size)) {
							continue
						}
						rows = append(rows, row)
						if limit > 0 && len(rows) >= limit {
							fh.Close()
							break files
						}
					}
				}
				fh.Close()
			}

			if format != "text" {
				if rows == nil {
					rows = []inspectRow{}
				}
				return writeStructured(cmd.OutOrStdout(), format, rows)
			}
			return writeRowsText(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().String("filter", "", "CEL expression selecting values")
	cmd.Flags().String("format", "text", "Output format: text|json|yaml")
	cmd.Flags().Int("limit", 0, "Stop after this many rows (0 = all)")
	return cmd
}

func writeRowsText(w io.Writer, rows []inspectRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tSTEP\tWALL_TIME\tKIND\tTAG\tVALUE")
	for _, r := range rows {
		kind, val := r.Kind, r.Detail
		switch {
		case r.FileVersion != "":
			kind, val = "header", r.FileVersion
		case r.Value != nil:
			val = fmt.Sprintf("%g", *r.Value)
		case r.Kind == "text":
			val = fmt.Sprintf("%q", r.Text)
		}
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t%s\t%s\t%s\n", r.Offset, r.Step, r.WallTime, kind, r.Tag, val)
	}
	return tw.Flush()
}
