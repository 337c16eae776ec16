package filter

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Input is the view of one summary value exposed to an expression. Events
// without a summary (the file_version header) are presented with an empty
// tag and kind.
type Input struct {
	File     string
	Offset   int64
	Size     int
	Step     int64
	WallTime float64
	Tag      string
	Kind     string
	Value    float64
	Text     string
}

// Filter wraps a compiled CEL program. The zero Filter matches everything.
type Filter struct {
	prog    cel.Program
	enabled bool
	expr    string
}

// Compile parses and type-checks expr. An empty expression yields a Filter
// that matches everything.
func Compile(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("file", cel.StringType),
		cel.Variable("offset", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("step", cel.IntType),
		cel.Variable("wall_time", cel.DoubleType),
		cel.Variable("tag", cel.StringType),
		// scalar, text, image, histogram, tensor, or "" for the header
		cel.Variable("kind", cel.StringType),
		cel.Variable("value", cel.DoubleType),
		cel.Variable("text", cel.StringType),
		// Current time in seconds for windowed filters
		cel.Variable("now", cel.DoubleType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true, expr: expr}, nil
}

// Enabled reports whether an expression was compiled.
func (f Filter) Enabled() bool { return f.enabled }

// String returns the source expression.
func (f Filter) String() string { return f.expr }

// Match evaluates the expression against in. Evaluation errors and non-bool
// results count as no match.
func (f Filter) Match(in Input) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"file":      in.File,
		"offset":    in.Offset,
		"size":      int64(in.Size),
		"step":      in.Step,
		"wall_time": in.WallTime,
		"tag":       in.Tag,
		"kind":      in.Kind,
		"value":     in.Value,
		"text":      in.Text,
		"now":       float64(time.Now().UnixNano()) / 1e9,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
