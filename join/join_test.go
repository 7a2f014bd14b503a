package join_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/grailbio/overlapjoin/interval"
	"github.com/grailbio/overlapjoin/join"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(chrom string, start, end int64, payload interface{}) join.Record {
	return join.Record{Chrom: chrom, Start: start, End: end, Payload: payload}
}

// runBothPlans joins a against b under each forced plan, checks the plan
// symmetry property, and returns one of the (equivalent) results.
func runBothPlans(t *testing.T, opts join.Opts, a, b []join.Record) []join.Pair {
	t.Helper()
	var results [][]join.Pair
	for _, strategy := range []join.Strategy{join.ReplicateIndex, join.PartitionIndex} {
		o := opts
		o.Strategy = strategy
		j := join.Joiner{Opts: o}
		pairs, err := j.Join(
			join.SliceSide(a, 3, int64(len(a))),
			join.SliceSide(b, 3, int64(len(b))))
		require.NoError(t, err, "strategy %s", strategy)
		results = append(results, pairs)
	}
	assert.ElementsMatch(t, results[0], results[1])
	assert.Equal(t, join.Digest(results[0]), join.Digest(results[1]))
	return results[0]
}

func TestJoinBasicOverlap(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 10, "a1")}
	b := []join.Record{
		rec("chr1", 5, 15, "b1"),
		rec("chr1", 11, 20, "b2"),
	}
	pairs := runBothPlans(t, join.DefaultOpts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
}

func TestJoinAdjacentNoMatch(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 5, "a1")}
	b := []join.Record{rec("chr1", 6, 10, "b1")}
	assert.Empty(t, runBothPlans(t, join.DefaultOpts, a, b))
}

func TestJoinSingleSharedCoordinate(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 5, "a1")}
	b := []join.Record{rec("chr1", 5, 5, "b1")}
	pairs := runBothPlans(t, join.DefaultOpts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
}

func TestJoinGapTolerance(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 5, "a1")}
	b := []join.Record{rec("chr1", 7, 10, "b1")}

	assert.Empty(t, runBothPlans(t, join.DefaultOpts, a, b))

	opts := join.DefaultOpts
	opts.MaxGap = 2
	pairs := runBothPlans(t, opts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
}

func TestJoinMinOverlap(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 10, "a1")}
	b := []join.Record{rec("chr1", 9, 20, "b1")} // overlap length 2

	opts := join.DefaultOpts
	opts.MinOverlap = 3
	assert.Empty(t, runBothPlans(t, opts, a, b))

	opts.MinOverlap = 2
	pairs := runBothPlans(t, opts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
}

// When both knobs are set, expansion widens retrieval but the overlap-length
// requirement holds on the true geometry, so the gap cannot fake an overlap.
func TestJoinMinOverlapWithGap(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 10, "a1")}
	b := []join.Record{
		rec("chr1", 9, 20, "b1"),  // true overlap length 2
		rec("chr1", 12, 20, "b2"), // no true overlap, within gap 5
	}
	opts := join.DefaultOpts
	opts.MaxGap = 5
	opts.MinOverlap = 2
	pairs := runBothPlans(t, opts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
}

func TestJoinDuplicateIntervalMultiplicity(t *testing.T) {
	a := []join.Record{
		rec("chr1", 1, 10, "p1"),
		rec("chr1", 1, 10, "p2"),
	}
	b := []join.Record{rec("chr1", 5, 5, "b")}
	pairs := runBothPlans(t, join.DefaultOpts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{
		{A: "p1", B: "b"},
		{A: "p2", B: "b"},
	})
}

func TestJoinManyToMany(t *testing.T) {
	a := []join.Record{
		rec("chr1", 1, 100, "a1"),
		rec("chr1", 50, 150, "a2"),
	}
	b := []join.Record{
		rec("chr1", 90, 110, "b1"),
		rec("chr1", 60, 60, "b2"),
	}
	pairs := runBothPlans(t, join.DefaultOpts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{
		{A: "a1", B: "b1"}, {A: "a2", B: "b1"},
		{A: "a1", B: "b2"}, {A: "a2", B: "b2"},
	})
}

func TestJoinAbsentChromosome(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 10, "a1")}
	b := []join.Record{
		rec("chrX", 1, 10, "bx"), // no chrX in the index: contributes nothing
		rec("chr1", 5, 5, "b1"),
	}
	pairs := runBothPlans(t, join.DefaultOpts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
}

func TestJoinEmptySides(t *testing.T) {
	b := []join.Record{rec("chr1", 1, 10, "b1")}
	assert.Empty(t, runBothPlans(t, join.DefaultOpts, nil, b))
	a := []join.Record{rec("chr1", 1, 10, "a1")}
	assert.Empty(t, runBothPlans(t, join.DefaultOpts, a, nil))
	assert.Empty(t, runBothPlans(t, join.DefaultOpts, nil, nil))
}

func TestJoinInvertedProbeMatchesNothing(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 10, "a1")}
	b := []join.Record{rec("chr1", 10, 1, "b1")}
	assert.Empty(t, runBothPlans(t, join.DefaultOpts, a, b))
}

func TestJoinMalformedIndexRecord(t *testing.T) {
	a := []join.Record{
		rec("chr1", 1, 10, "a1"),
		rec("chr1", 10, 1, "bad"),
	}
	b := []join.Record{rec("chr1", 5, 5, "b1")}

	j := join.Joiner{Opts: join.DefaultOpts}
	_, err := j.Join(join.SliceSide(a, 1, 2), join.SliceSide(b, 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inverted interval")

	opts := join.DefaultOpts
	opts.DropMalformed = true
	pairs := runBothPlans(t, opts, a, b)
	assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
}

func TestJoinInvalidOpts(t *testing.T) {
	a := join.SliceSide(nil, 1, 0)
	for _, opts := range []join.Opts{
		{MinOverlap: -1},
		{MaxGap: -2},
	} {
		j := join.Joiner{Opts: opts}
		_, err := j.Join(a, a)
		assert.Error(t, err, "%+v", opts)
	}
}

// The auto strategy must produce the same pairs Pick's chosen plan produces,
// whichever side of the budget the hint lands on.
func TestJoinAutoStrategy(t *testing.T) {
	a := []join.Record{rec("chr1", 1, 10, "a1")}
	b := []join.Record{rec("chr1", 5, 15, "b1")}
	for _, budget := range []int64{0, 100} {
		opts := join.DefaultOpts
		opts.BroadcastBudget = budget
		j := join.Joiner{Opts: opts}
		pairs, err := j.Join(join.SliceSide(a, 1, 10), join.SliceSide(b, 1, 10))
		require.NoError(t, err)
		assert.ElementsMatch(t, pairs, []join.Pair{{A: "a1", B: "b1"}})
	}
}

// Randomized cross-validation: both plans must agree with a brute-force
// scan of the reference predicate.
func TestJoinRandomizedAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	chroms := []string{"chr1", "chr2", "chr3", "chrX"}
	randRecords := func(n int, tag string) []join.Record {
		recs := make([]join.Record, n)
		for i := range recs {
			start := rng.Int63n(300)
			recs[i] = rec(
				chroms[rng.Intn(len(chroms))],
				start, start+rng.Int63n(40),
				fmt.Sprintf("%s%d", tag, i))
		}
		return recs
	}
	cases := []struct {
		minOverlap, maxGap int64
	}{
		{1, 0},
		{1, 3},
		{5, 0},
		{4, 6},
	}
	for _, c := range cases {
		a := randRecords(200, "a")
		b := randRecords(200, "b")
		var want []join.Pair
		for _, ra := range a {
			for _, rb := range b {
				if ra.Chrom != rb.Chrom {
					continue
				}
				ia := interval.Interval{Start: ra.Start, End: ra.End}
				ib := interval.Interval{Start: rb.Start, End: rb.End}
				if interval.Matches(ia, ib, c.minOverlap, c.maxGap) {
					want = append(want, join.Pair{A: ra.Payload, B: rb.Payload})
				}
			}
		}
		opts := join.DefaultOpts
		opts.MinOverlap = c.minOverlap
		opts.MaxGap = c.maxGap
		got := runBothPlans(t, opts, a, b)
		assert.ElementsMatch(t, got, want, "minOverlap=%d maxGap=%d", c.minOverlap, c.maxGap)
	}
}
