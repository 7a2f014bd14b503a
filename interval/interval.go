package interval

// Interval is a closed coordinate range: Start and End are both contained.
// A well-formed Interval satisfies Start <= End; a single-point interval has
// Start == End.  Intervals are plain values and are copied freely.
type Interval struct {
	Start int64
	End   int64
}

// OverlapLength returns the number of coordinates shared by i and j.  The
// result is zero or negative when the intervals are disjoint, and exactly 1
// when they share a single coordinate.
func (i Interval) OverlapLength(j Interval) int64 {
	return min64(i.End, j.End) - max64(i.Start, j.Start) + 1
}

// Overlaps reports whether i and j share at least one coordinate.
func (i Interval) Overlaps(j Interval) bool {
	return i.Start <= j.End && j.Start <= i.End
}

// Expand returns the interval widened by g on both ends.  g is typically a
// join's maxGap tolerance.  The result may extend below zero.
func (i Interval) Expand(g int64) Interval {
	return Interval{Start: i.Start - g, End: i.End + g}
}

// Matches reports whether indexed interval a and probe interval b satisfy the
// join tolerance.  maxGap widens a symmetrically before the plain overlap
// test, so intervals separated by up to maxGap coordinates still match.  A
// minOverlap above the default of 1 then requires at least that many shared
// coordinates, measured on the unexpanded pair.  minOverlap and maxGap are
// mutually exclusive tolerance modes: when both are set, the expansion only
// widens candidate retrieval while the overlap-length requirement keeps its
// meaning on the true geometry.
//
// The tree-backed join applies the same two steps physically: expansion at
// index construction, overlap-length filtering at probe time.  This function
// is the reference predicate the tree path must agree with.
func Matches(a, b Interval, minOverlap, maxGap int64) bool {
	if !a.Expand(maxGap).Overlaps(b) {
		return false
	}
	if minOverlap != 1 {
		return a.OverlapLength(b) >= minOverlap
	}
	return true
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a < b {
		return b
	}
	return a
}
