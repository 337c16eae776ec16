package index

import (
	"math"

	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
)

// QueryOptions selects a window of a scalar series.
type QueryOptions struct {
	// Start is the first step returned (inclusive). Reverse scans treat it as
	// the last step. Zero means from the beginning (or end when Reverse).
	Start int64
	// Limit caps the number of points; zero means no limit.
	Limit   int
	Reverse bool
}

// Point is one indexed scalar.
type Point struct {
	Step     int64   `json:"step"`
	WallTime float64 `json:"wall_time"`
	Value    float64 `json:"value"`
	File     string  `json:"file"`
	Offset   int64   `json:"offset"`
}

// Scalars returns the points of tag in run ordered by step, then by file and
// offset. A step written more than once yields one point per write.
func (ix *Index) Scalars(run, tag string, opts QueryOptions) ([]Point, error) {
	prefix := KeyScalarPrefix(run, tag)
	lower, upper := prefix, pebblestore.PrefixEnd(prefix)
	if opts.Start != 0 {
		if opts.Reverse {
			if opts.Start < math.MaxInt64 {
				upper = KeyScalarStep(run, tag, opts.Start+1)
			}
		} else {
			lower = KeyScalarStep(run, tag, opts.Start)
		}
	}

	points := make([]Point, 0, max(1, opts.Limit))
	var perr error
	err := ix.db.Scan(lower, upper, opts.Reverse, func(k, v []byte) bool {
		step, file, off, err := parseScalarKey(k[len(prefix):])
		if err != nil {
			perr = err
			return false
		}
		wall, val, err := decodePoint(v)
		if err != nil {
			perr = err
			return false
		}
		points = append(points, Point{Step: step, WallTime: wall, Value: val, File: file, Offset: off})
		return opts.Limit == 0 || len(points) < opts.Limit
	})
	if err != nil {
		return nil, err
	}
	return points, perr
}
