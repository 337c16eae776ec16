package histogram

import (
	"math"
)

// maxExp is the largest exponent whose power of two is finite.
const maxExp = 1023

// Summary is an immutable snapshot of an Accumulator. BucketLimits[i] is the
// right edge of the bucket counted in BucketCounts[i].
type Summary struct {
	Min          float64
	Max          float64
	Count        uint64
	Sum          float64
	SumSquares   float64
	BucketLimits []float64
	BucketCounts []uint64
}

// Empty reports whether the summary has no data. An empty summary has
// Min=+Inf and Max=-Inf and must not be read as data at zero.
func (s Summary) Empty() bool { return s.Count == 0 }

// Compact merges runs of empty buckets into one, keeping the right edge of the
// last bucket in each run. Totals are unchanged.
func (s Summary) Compact() Summary {
	out := s
	out.BucketLimits = make([]float64, 0, len(s.BucketLimits))
	out.BucketCounts = make([]uint64, 0, len(s.BucketCounts))
	for i := 0; i < len(s.BucketCounts); {
		end, count := s.BucketLimits[i], s.BucketCounts[i]
		i++
		if count == 0 {
			for i < len(s.BucketCounts) && s.BucketCounts[i] == 0 {
				end = s.BucketLimits[i]
				i++
			}
		}
		out.BucketLimits = append(out.BucketLimits, end)
		out.BucketCounts = append(out.BucketCounts, count)
	}
	return out
}

// Accumulator keeps running statistics over a stream of values. It is not
// safe for concurrent use.
type Accumulator struct {
	seeded bool
	k0     int
	kmax   int
	// pos[0] counts (0, 2^k0), pos[j] counts [2^(k0+j-1), 2^(k0+j)).
	pos []uint64
	// neg[0] counts [-2^k0, 0), neg[j] counts [-2^(k0+j), -2^(k0+j-1)).
	neg   []uint64
	zero  uint64
	under uint64
	over  uint64

	count uint64
	sum   float64
	sumSq float64
	min   float64
	max   float64
}

// New returns an empty accumulator.
func New() *Accumulator {
	a := &Accumulator{}
	a.Reset()
	return a
}

// Reset discards all accumulated state.
func (a *Accumulator) Reset() {
	*a = Accumulator{min: math.Inf(1), max: math.Inf(-1)}
}

// Accumulate adds values and returns a snapshot of the accumulated state.
func (a *Accumulator) Accumulate(values []float64) Summary {
	for _, v := range values {
		a.add(v)
	}
	return a.Snapshot()
}

func (a *Accumulator) add(v float64) {
	a.count++
	a.sum += v
	a.sumSq += v * v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}

	switch {
	case math.IsNaN(v) || math.IsInf(v, 1):
		a.over++
		return
	case math.IsInf(v, -1):
		a.under++
		return
	case v == 0:
		a.zero++
		return
	}

	frac, e := math.Frexp(math.Abs(v))
	// Negative buckets are closed on their left edge, which is the larger
	// magnitude: -2^(e-1) belongs to the bucket ending at -2^(e-2).
	if v < 0 && frac == 0.5 {
		e--
	}
	capped := e
	if capped > maxExp {
		capped = maxExp
	}
	if !a.seeded {
		a.seed(capped)
	}
	if capped > a.kmax {
		a.grow(capped)
	}
	if e > maxExp {
		if v > 0 {
			a.over++
		} else {
			a.under++
		}
		return
	}
	j := e - a.k0
	if j < 0 {
		j = 0
	}
	if v > 0 {
		a.pos[j]++
	} else {
		a.neg[j]++
	}
}

func (a *Accumulator) seed(k int) {
	a.seeded = true
	a.k0 = k
	a.kmax = k
	a.pos = []uint64{0}
	a.neg = []uint64{0}
}

// grow doubles the outer limits until 2^kmax reaches 2^k.
func (a *Accumulator) grow(k int) {
	for a.kmax < k {
		a.kmax++
		a.pos = append(a.pos, 0)
		a.neg = append(a.neg, 0)
	}
}

// Snapshot returns the current state without modifying it.
func (a *Accumulator) Snapshot() Summary {
	s := Summary{Min: a.min, Max: a.max, Count: a.count, Sum: a.sum, SumSquares: a.sumSq}
	if !a.seeded {
		s.BucketLimits = []float64{0, math.MaxFloat64}
		s.BucketCounts = []uint64{a.under, a.zero + a.over}
		return s
	}
	n := a.kmax - a.k0
	s.BucketLimits = make([]float64, 0, 2*n+4)
	s.BucketCounts = make([]uint64, 0, 2*n+4)

	s.BucketLimits = append(s.BucketLimits, -math.Ldexp(1, a.kmax))
	s.BucketCounts = append(s.BucketCounts, a.under)
	for j := n; j >= 1; j-- {
		s.BucketLimits = append(s.BucketLimits, -math.Ldexp(1, a.k0+j-1))
		s.BucketCounts = append(s.BucketCounts, a.neg[j])
	}
	s.BucketLimits = append(s.BucketLimits, 0)
	s.BucketCounts = append(s.BucketCounts, a.neg[0])

	s.BucketLimits = append(s.BucketLimits, math.Ldexp(1, a.k0))
	s.BucketCounts = append(s.BucketCounts, a.pos[0]+a.zero)
	for j := 1; j <= n; j++ {
		s.BucketLimits = append(s.BucketLimits, math.Ldexp(1, a.k0+j))
		s.BucketCounts = append(s.BucketCounts, a.pos[j])
	}
	s.BucketLimits = append(s.BucketLimits, math.MaxFloat64)
	s.BucketCounts = append(s.BucketCounts, a.over)
	return s
}
