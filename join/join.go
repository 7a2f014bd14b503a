// Package join implements a genomic overlap join: given two collections of
// (chromosome, interval, payload) records, it finds every pair of records,
// one from each collection, whose intervals overlap under an optional
// minimum-overlap or gap tolerance, preserving full n-to-m multiplicity.
//
// One side (A) is bulk-indexed into a per-chromosome interval forest; the
// other side (B) streams through it.  Two physical plans produce the same
// logical result: ReplicateIndex shares one payload-carrying index with every
// probe worker, PartitionIndex indexes lightweight synthetic ids and
// rehydrates payloads after aggregation.  Pick chooses between them from a
// caller-supplied size hint.
package join

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/overlapjoin/interval"
)

// Joiner runs overlap joins with a fixed configuration.  A Joiner is
// stateless across Join calls and safe for concurrent use.
type Joiner struct {
	Opts Opts
}

// Join indexes side a, probes it with side b, and returns every matching
// (a-payload, b-payload) pair.  Pair order is unspecified.  A probe record
// whose chromosome never appears in the index contributes zero pairs; an
// empty side a yields an empty result for any b.
func (j *Joiner) Join(a, b Side) ([]Pair, error) {
	opts := j.Opts
	if opts.MinOverlap == 0 {
		opts.MinOverlap = 1
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.MinOverlap < 1 {
		return nil, errors.E(fmt.Sprintf("join: invalid MinOverlap %d", opts.MinOverlap))
	}
	if opts.MaxGap < 0 {
		return nil, errors.E(fmt.Sprintf("join: invalid MaxGap %d", opts.MaxGap))
	}

	dec := Decision{Strategy: opts.Strategy, Reason: "plan pinned by caller"}
	if opts.Strategy == AutoStrategy {
		dec = Pick(a.SizeHint, opts.BroadcastBudget)
	}
	log.Debug.Printf("join: plan %s: %s", dec.Strategy, dec.Reason)
	switch dec.Strategy {
	case ReplicateIndex:
		return replicateJoin(a, b, opts)
	case PartitionIndex:
		return partitionJoin(a, b, opts)
	}
	return nil, errors.E(fmt.Sprintf("join: unknown strategy %s", dec.Strategy))
}

// scanSide drains every shard of the indexed side in parallel, enforcing the
// malformed-interval policy.  Per-shard buffers keep record positions stable
// regardless of scheduling, which is what makes PartitionIndex's id
// assignment deterministic.
func scanSide(s Side, opts Opts) (shards [][]Record, dropped int64, err error) {
	shards = make([][]Record, len(s.Shards))
	var nDropped int64
	err = traverse.Each(len(s.Shards), func(i int) error {
		st := s.Shards[i]
		for st.Scan() {
			rec := st.Record()
			if rec.Start > rec.End {
				if !opts.DropMalformed {
					return errors.E(fmt.Sprintf(
						"join: inverted interval [%d, %d] on %s in index input",
						rec.Start, rec.End, rec.Chrom))
				}
				atomic.AddInt64(&nDropped, 1)
				continue
			}
			shards[i] = append(shards[i], rec)
		}
		return st.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	if nDropped > 0 {
		log.Printf("join: dropped %d malformed index record(s)", nDropped)
	}
	return shards, nDropped, nil
}

// probeShard streams one probe shard through the forest, invoking emit once
// per (indexed payload, probe record) match.  Stored intervals already carry
// the maxGap expansion; when a minOverlap filter is in force, the original
// index geometry is recovered arithmetically before measuring.
func probeShard(f *interval.Forest, s Stream, opts Opts, emit func(aPayload interface{}, b Record)) error {
	finder := f.Finder()
	for s.Scan() {
		rec := s.Record()
		q := interval.Interval{Start: rec.Start, End: rec.End}
		finder.DoOverlappers(rec.Chrom, q, func(e interval.Entry) {
			if opts.MinOverlap != 1 {
				orig := interval.Interval{
					Start: e.Interval.Start + opts.MaxGap,
					End:   e.Interval.End - opts.MaxGap,
				}
				if orig.OverlapLength(q) < opts.MinOverlap {
					return
				}
			}
			for _, p := range e.Payloads {
				emit(p, rec)
			}
		})
	}
	return s.Err()
}

// flattenPairs concatenates per-worker pair buffers.
func flattenPairs(bufs [][]Pair) []Pair {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	out := make([]Pair, 0, n)
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out
}
