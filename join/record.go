package join

// Record is one join input row: a closed interval on a named chromosome plus
// an opaque payload.  The payload is never inspected; it is carried through
// the join and surfaced unmodified in output Pairs.
type Record struct {
	Chrom   string
	Start   int64
	End     int64
	Payload interface{}
}

// Stream yields Records one at a time.
//
// Typical usage:
//   for s.Scan() {
//     rec := s.Record()
//     ...
//   }
//   if err := s.Err(); err != nil { ... }
type Stream interface {
	// Scan advances to the next record.  It returns false at end of stream or
	// on error; the two are distinguished by Err.
	Scan() bool
	// Record returns the record at the current position.  It is only valid
	// after a Scan call that returned true, and only until the next Scan.
	Record() Record
	// Err returns the first error encountered, or nil after a clean end of
	// stream.
	Err() error
}

// Side is one input of a join: a set of shard streams the executor drains in
// parallel, plus the caller's size estimate for the whole side.  SizeHint is
// consulted only for the side being indexed, and only to choose a plan; its
// unit must match Opts.BroadcastBudget.  Callers with no estimate should pass
// a conservatively large value.
type Side struct {
	Shards   []Stream
	SizeHint int64
}

// Pair is one join output row: an indexed-side payload and a probe-side
// payload whose intervals satisfied the overlap predicate.
type Pair struct {
	A interface{}
	B interface{}
}

// SliceStream is a Stream over an in-memory record slice.
type SliceStream struct {
	recs []Record
	pos  int
}

// NewSliceStream returns a Stream yielding the given records in order.
func NewSliceStream(recs ...Record) *SliceStream {
	return &SliceStream{recs: recs}
}

// Scan implements Stream.
func (s *SliceStream) Scan() bool {
	if s.pos >= len(s.recs) {
		return false
	}
	s.pos++
	return true
}

// Record implements Stream.
func (s *SliceStream) Record() Record { return s.recs[s.pos-1] }

// Err implements Stream.
func (s *SliceStream) Err() error { return nil }

// SliceSide splits recs into nShards contiguous shard streams, sized to
// within one record of each other, and wraps them in a Side with the given
// size hint.  nShards below 1 is treated as 1.
func SliceSide(recs []Record, nShards int, sizeHint int64) Side {
	if nShards < 1 {
		nShards = 1
	}
	if nShards > len(recs) && len(recs) > 0 {
		nShards = len(recs)
	}
	side := Side{SizeHint: sizeHint}
	for i := 0; i < nShards; i++ {
		lo := len(recs) * i / nShards
		hi := len(recs) * (i + 1) / nShards
		side.Shards = append(side.Shards, NewSliceStream(recs[lo:hi]...))
	}
	return side
}
