package join

import "fmt"

// Strategy identifies a physical join plan.
type Strategy int

const (
	// AutoStrategy defers the choice to Pick.
	AutoStrategy Strategy = iota
	// ReplicateIndex builds the interval index over full payloads and shares
	// the one copy with every probe worker (broadcast join).  Preferred when
	// the indexed side is small.
	ReplicateIndex
	// PartitionIndex builds the index over dense synthetic ids, aggregates
	// probe matches per id, and rehydrates real payloads afterwards.
	// Preferred when the indexed side's payload volume is large: only the
	// lightweight id-keyed index needs replicating.
	PartitionIndex
)

func (s Strategy) String() string {
	switch s {
	case AutoStrategy:
		return "auto"
	case ReplicateIndex:
		return "replicate-index"
	case PartitionIndex:
		return "partition-index"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Decision is the optimizer's output: the chosen plan and a human-readable
// rationale.  Reason is advisory; nothing inspects it.
type Decision struct {
	Strategy Strategy
	Reason   string
}

// Pick chooses a plan from the indexed side's size hint and the broadcast
// budget: ReplicateIndex iff the hint does not exceed the budget.  The rule
// is a single threshold comparison on purpose; a wrong hint costs
// performance, never correctness, so no estimation sophistication is
// warranted here.
func Pick(sizeHint, broadcastBudget int64) Decision {
	if sizeHint <= broadcastBudget {
		return Decision{
			Strategy: ReplicateIndex,
			Reason: fmt.Sprintf("index size hint %d within broadcast budget %d",
				sizeHint, broadcastBudget),
		}
	}
	return Decision{
		Strategy: PartitionIndex,
		Reason: fmt.Sprintf("index size hint %d exceeds broadcast budget %d",
			sizeHint, broadcastBudget),
	}
}
