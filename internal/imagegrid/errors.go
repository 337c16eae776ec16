package imagegrid

import (
	"errors"
	"fmt"
)

// ErrInvalidShape is matched by every shape validation failure.
var ErrInvalidShape = errors.New("invalid image shape")

// InvalidShapeError names the constraint a tensor shape violated.
type InvalidShapeError struct {
	Shape      []int
	Layout     Layout
	Constraint string
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("imagegrid: invalid shape %v (%s): %s", e.Shape, e.Layout, e.Constraint)
}

func (e *InvalidShapeError) Is(target error) bool { return target == ErrInvalidShape }

func invalid(shape []int, layout Layout, format string, args ...any) error {
	s := make([]int, len(shape))
	copy(s, shape)
	return &InvalidShapeError{Shape: s, Layout: layout, Constraint: fmt.Sprintf(format, args...)}
}
