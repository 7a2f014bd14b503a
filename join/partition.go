package join

import (
	"fmt"
	"math"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/overlapjoin/interval"
)

const numAggStripes = 256

// aggArena accumulates probe matches per synthetic id.  The slice is dense
// (ids are sequence numbers), so a small fixed set of striped mutexes is
// enough: probe workers for distinct ids rarely collide on a stripe.
type aggArena struct {
	mus     [numAggStripes]sync.Mutex
	matches [][]interface{}
}

func newAggArena(n int) *aggArena {
	return &aggArena{matches: make([][]interface{}, n)}
}

func (a *aggArena) add(id int32, b interface{}) {
	mu := &a.mus[int(id)%numAggStripes]
	mu.Lock()
	a.matches[id] = append(a.matches[id], b)
	mu.Unlock()
}

// partitionJoin is the indexed plan with synthetic keys: the forest holds
// dense int32 ids instead of payloads, probe matches aggregate per id, and
// real payloads are substituted back in afterwards.  Replication cost is
// bounded by side A's cardinality, not its payload volume.
func partitionJoin(a, b Side, opts Opts) ([]Pair, error) {
	aShards, _, err := scanSide(a, opts)
	if err != nil {
		return nil, err
	}
	// Dense id assignment by prefix sum of shard sizes: deterministic and
	// collision-free by construction.
	base := make([]int, len(aShards)+1)
	for i, recs := range aShards {
		base[i+1] = base[i] + len(recs)
	}
	total := base[len(aShards)]
	if total > math.MaxInt32 {
		return nil, errors.E(fmt.Sprintf("join: %d index records exceed the synthetic id space", total))
	}

	payloads := make([]interface{}, total) // id -> A payload
	items := make([]interval.Item, total)
	if err = traverse.Each(len(aShards), func(i int) error {
		for k, r := range aShards[i] {
			id := int32(base[i] + k)
			payloads[id] = r.Payload
			items[id] = interval.Item{
				Chrom:    r.Chrom,
				Interval: interval.Interval{Start: r.Start, End: r.End}.Expand(opts.MaxGap),
				Payload:  id,
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	forest, err := interval.NewForest(items, interval.ForestOpts{Parallelism: opts.Parallelism})
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("join: partitioned index over %d record(s), %d chromosome(s)",
		total, len(forest.Chromosomes()))
	if opts.IndexReplicaPath != "" {
		if err = WriteReplicaFile(opts.IndexReplicaPath, forest); err != nil {
			return nil, err
		}
	}

	agg := newAggArena(total)
	err = traverse.Each(len(b.Shards), func(i int) error {
		return probeShard(forest, b.Shards[i], opts, func(p interface{}, rec Record) {
			agg.add(p.(int32), rec.Payload)
		})
	})
	if err != nil {
		return nil, err
	}

	// Rehydrate over disjoint id ranges: substitute real A payloads for ids
	// and flatten the per-id match lists into pairs.
	nw := opts.Parallelism
	bufs := make([][]Pair, nw)
	if err = traverse.Each(nw, func(w int) error {
		for id := total * w / nw; id < total*(w+1)/nw; id++ {
			for _, bp := range agg.matches[id] {
				bufs[w] = append(bufs[w], Pair{A: payloads[id], B: bp})
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return flattenPairs(bufs), nil
}
