// Package histogram implements the streaming histogram accumulator behind
// histogram summaries.
//
// Bucket limits form a signed power-of-two lattice. The first finite non-zero
// value seeds the innermost exponent k0; values beyond the outermost limit
// double it (away from zero) until enclosed. Growth only appends buckets, so
// counts already recorded never move:
//
//	-2^kmax ... -2^k0, 0, 2^k0 ... 2^kmax, MaxFloat64
//
// Bucket i covers [limit[i-1], limit[i]). The first bucket is open towards
// -Inf and the last one is closed on the right at +Inf.
//
// Count, sum and sum of squares are accumulated sequentially in arrival order,
// so splitting a stream into several Accumulate calls yields identical
// statistics.
package histogram
