package join

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/overlapjoin/interval"
)

// replicateJoin is the broadcast plan: one forest built over full payloads,
// shared by reference with every probe worker.
func replicateJoin(a, b Side, opts Opts) ([]Pair, error) {
	aShards, _, err := scanSide(a, opts)
	if err != nil {
		return nil, err
	}
	n := 0
	for _, recs := range aShards {
		n += len(recs)
	}
	items := make([]interval.Item, 0, n)
	for _, recs := range aShards {
		for _, r := range recs {
			items = append(items, interval.Item{
				Chrom:    r.Chrom,
				Interval: interval.Interval{Start: r.Start, End: r.End}.Expand(opts.MaxGap),
				Payload:  r.Payload,
			})
		}
	}
	forest, err := interval.NewForest(items, interval.ForestOpts{Parallelism: opts.Parallelism})
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("join: replicated index over %d record(s), %d chromosome(s)",
		n, len(forest.Chromosomes()))

	// The forest is complete and immutable from here on; probe workers share
	// it without synchronization.
	bufs := make([][]Pair, len(b.Shards))
	err = traverse.Each(len(b.Shards), func(i int) error {
		return probeShard(forest, b.Shards[i], opts, func(p interface{}, rec Record) {
			bufs[i] = append(bufs[i], Pair{A: p, B: rec.Payload})
		})
	})
	if err != nil {
		return nil, err
	}
	return flattenPairs(bufs), nil
}
