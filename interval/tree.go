package interval

import (
	"fmt"
	"runtime"
	"sort"

	itree "github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/sam"
)

// Item is one record to be indexed: an interval on a named chromosome plus an
// opaque payload carried through queries unmodified.
type Item struct {
	Chrom    string
	Interval Interval
	Payload  interface{}
}

// Entry is one tree node's content: a stored interval and every payload
// indexed under it.  Items sharing an identical (chromosome, interval) pair
// are merged into a single Entry whose payload set preserves every element,
// including duplicate values; the set's order is unspecified.
type Entry struct {
	Interval Interval
	Payloads []interface{}
}

// ForestOpts controls Forest construction.
type ForestOpts struct {
	// SAMHeader, if set, additionally indexes the per-chromosome trees by the
	// header's reference IDs so that probes originating from BAM shards can
	// use OverlappersByID instead of name lookup.  Chromosomes absent from
	// the header remain reachable by name only.
	SAMHeader *sam.Header
	// Parallelism bounds the number of workers used to group items and build
	// per-chromosome trees.  0 means runtime.NumCPU().
	Parallelism int
}

// Forest maps chromosome names to independently built augmented interval
// trees.  A Forest is immutable once NewForest returns: every query is a
// read-only traversal, so any number of goroutines may probe it concurrently
// without locking.
type Forest struct {
	nameMap map[string]*chromTree
	names   []string // sorted
	idMap   []*chromTree
	n       int
}

// chromTree is the per-chromosome unit: an augmented tree for overlap queries
// plus the same entries in insertion order for whole-index iteration.
type chromTree struct {
	tree    itree.IntTree
	entries []*treeEntry
}

// treeEntry implements itree.IntInterface.  uid is the entry's position in
// insertion order; biogo uses it to break ties between equal start
// coordinates, so it also pins the tree's iteration order.
type treeEntry struct {
	iv       Interval
	uid      uintptr
	payloads []interface{}
}

func (e *treeEntry) Overlap(b itree.IntRange) bool {
	return e.iv.Start <= int64(b.End) && int64(b.Start) <= e.iv.End
}

func (e *treeEntry) ID() uintptr { return e.uid }

func (e *treeEntry) Range() itree.IntRange {
	return itree.IntRange{Start: int(e.iv.Start), End: int(e.iv.End)}
}

// query implements itree.IntOverlapper with closed-coordinate semantics.
// biogo consults only the query's Overlap method during traversal, both
// against subtree envelopes and against element ranges.
type query struct{ iv Interval }

func (q query) Overlap(b itree.IntRange) bool {
	return q.iv.Start <= int64(b.End) && int64(b.Start) <= q.iv.End
}

// NewForest bulk-builds a Forest.  Items are grouped by chromosome (pure
// partitioning, ordering-free), duplicate (chromosome, interval) pairs are
// merged onto one entry, and one augmented tree is built per chromosome, in
// parallel.  Construction is one-shot; there is no incremental insert.
//
// An inverted interval (Start > End) fails construction: callers that prefer
// dropping such records must filter before indexing.  An empty item set
// yields a Forest with no chromosomes, which answers every query with an
// empty result.
func NewForest(items []Item, opts ForestOpts) (*Forest, error) {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	m := newChromMap()
	err := traverse.Each(parallelism, func(worker int) error {
		for i := worker; i < len(items); i += parallelism {
			it := items[i]
			if it.Interval.Start > it.Interval.End {
				return fmt.Errorf("interval.NewForest: inverted interval [%d, %d] on %s",
					it.Interval.Start, it.Interval.End, it.Chrom)
			}
			m.add(it.Chrom, int32(i))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	type group struct {
		chrom     string
		positions []int32
	}
	var groups []group
	m.each(func(chrom string, positions []int32) {
		groups = append(groups, group{chrom, positions})
	})
	sort.Slice(groups, func(i, j int) bool { return groups[i].chrom < groups[j].chrom })

	trees := make([]*chromTree, len(groups))
	err = traverse.Each(parallelism, func(worker int) error {
		for gi := worker; gi < len(groups); gi += parallelism {
			t, err := newChromTree(items, groups[gi].positions)
			if err != nil {
				return err
			}
			trees[gi] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f := &Forest{
		nameMap: make(map[string]*chromTree, len(groups)),
		names:   make([]string, len(groups)),
	}
	for gi := range groups {
		f.names[gi] = groups[gi].chrom
		f.nameMap[groups[gi].chrom] = trees[gi]
		f.n += len(trees[gi].entries)
	}
	if opts.SAMHeader != nil {
		refs := opts.SAMHeader.Refs()
		f.idMap = make([]*chromTree, len(refs))
		for refID, ref := range refs {
			if refID != ref.ID() {
				panic("interval.NewForest: sam header ref.ID != array position")
			}
			f.idMap[refID] = f.nameMap[ref.Name()]
		}
	}
	log.Debug.Printf("interval: built %d chromosome tree(s), %d entries from %d items",
		len(groups), f.n, len(items))
	return f, nil
}

// newChromTree builds the tree for one chromosome from the items at the given
// positions.  Positions may arrive in any order (the grouping map is fed by
// concurrent workers); sorting them first pins entry creation to the caller's
// original item order, making the built tree a pure function of the input.
func newChromTree(items []Item, positions []int32) (*chromTree, error) {
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	t := &chromTree{}
	byIv := make(map[Interval]*treeEntry, len(positions))
	for _, pos := range positions {
		it := items[pos]
		e := byIv[it.Interval]
		if e == nil {
			e = &treeEntry{iv: it.Interval, uid: uintptr(len(t.entries))}
			byIv[it.Interval] = e
			t.entries = append(t.entries, e)
		}
		e.payloads = append(e.payloads, it.Payload)
	}
	// Fast inserts skip per-insert range bookkeeping; one AdjustRanges pass
	// restores the subtree max-end augmentation before any query runs.
	for _, e := range t.entries {
		if err := t.tree.Insert(e, true); err != nil {
			return nil, err
		}
	}
	t.tree.AdjustRanges()
	return t, nil
}

// Overlappers returns every entry on chrom whose stored interval overlaps q
// under the plain closed-coordinate test.  An absent chromosome yields an
// empty result, as does an inverted query (q.Start > q.End): no interval can
// overlap an inverted range.  Results come back in tree order, which is
// deterministic for a given Forest.  The returned payload slices are shared
// with the Forest and must not be modified.
func (f *Forest) Overlappers(chrom string, q Interval) []Entry {
	var out []Entry
	f.DoOverlappers(chrom, q, func(e Entry) { out = append(out, e) })
	return out
}

// DoOverlappers is Overlappers without the result allocation: fn is invoked
// once per overlapping entry, in deterministic tree order.
func (f *Forest) DoOverlappers(chrom string, q Interval, fn func(Entry)) {
	doOverlappers(f.nameMap[chrom], q, fn)
}

// OverlappersByID is Overlappers keyed by SAM reference ID rather than by
// name.  The Forest must have been built with ForestOpts.SAMHeader, and refID
// must be a valid reference ID from that header.
func (f *Forest) OverlappersByID(refID int, q Interval) []Entry {
	var out []Entry
	f.DoOverlappersByID(refID, q, func(e Entry) { out = append(out, e) })
	return out
}

// DoOverlappersByID is OverlappersByID without the result allocation.
func (f *Forest) DoOverlappersByID(refID int, q Interval, fn func(Entry)) {
	doOverlappers(f.idMap[refID], q, fn)
}

func doOverlappers(t *chromTree, q Interval, fn func(Entry)) {
	if t == nil || q.Start > q.End {
		return
	}
	t.tree.DoMatching(func(e itree.IntInterface) (done bool) {
		ent := e.(*treeEntry)
		fn(Entry{Interval: ent.iv, Payloads: ent.payloads})
		return
	}, query{q})
}

// Chromosomes returns the indexed chromosome names in sorted order.
func (f *Forest) Chromosomes() []string { return f.names }

// Len returns the total number of entries (unique intervals) across all
// chromosomes.
func (f *Forest) Len() int { return f.n }

// Each calls fn for every entry on chrom, in insertion order.  An unknown
// chromosome is a no-op.
func (f *Forest) Each(chrom string, fn func(Entry)) {
	t := f.nameMap[chrom]
	if t == nil {
		return
	}
	for _, e := range t.entries {
		fn(Entry{Interval: e.iv, Payloads: e.payloads})
	}
}

// Finder wraps a Forest with a last-chromosome cache so that runs of probes
// against the same chromosome skip the name lookup.  A Finder is not safe
// for concurrent use; give each probing goroutine its own.  The underlying
// Forest stays shared and read-only.
type Finder struct {
	f         *Forest
	lastChrom string
	lastTree  *chromTree
}

// Finder returns a new Finder over f.
func (f *Forest) Finder() Finder {
	return Finder{f: f, lastTree: f.nameMap[""]}
}

// DoOverlappers behaves like Forest.DoOverlappers.
func (fd *Finder) DoOverlappers(chrom string, q Interval, fn func(Entry)) {
	if chrom != fd.lastChrom {
		fd.lastChrom = chrom
		fd.lastTree = fd.f.nameMap[chrom]
	}
	doOverlappers(fd.lastTree, q, fn)
}
