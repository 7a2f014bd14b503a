package interval

import (
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
)

const numChromMapShards = 64

type chromMapShard struct {
	mu sync.Mutex
	// groups maps a chromosome name to the positions (indices into the
	// caller's item slice) of the items on that chromosome.
	groups map[string][]int32
}

// chromMap is a sharded, thread-safe multimap from chromosome name to item
// position, used to group items during forest construction.  Storing
// positions rather than items keeps the map small and lets the per-chromosome
// build restore the caller's original item order afterwards, so the built
// forest does not depend on goroutine scheduling.
type chromMap struct {
	shards [numChromMapShards]chromMapShard
}

func newChromMap() *chromMap {
	m := &chromMap{}
	for i := 0; i < len(m.shards); i++ {
		m.shards[i].groups = make(map[string][]int32)
	}
	return m
}

func (m *chromMap) add(chrom string, pos int32) {
	h := seahash.Sum64(unsafe.StringToBytes(chrom))
	shard := &m.shards[int(h%uint64(numChromMapShards))]

	shard.mu.Lock()
	shard.groups[chrom] = append(shard.groups[chrom], pos)
	shard.mu.Unlock()
}

// each calls fn once per chromosome.  It must only be invoked after all add
// calls have completed; the group order is unspecified.
func (m *chromMap) each(fn func(chrom string, positions []int32)) {
	for i := range m.shards {
		s := &m.shards[i]
		for chrom, positions := range s.groups {
			fn(chrom, positions)
		}
	}
}
