package join

// Opts configures a Joiner.  The zero value is not usable as-is (MinOverlap
// and BroadcastBudget would be zero); start from DefaultOpts.
type Opts struct {
	// MinOverlap is the minimum number of shared coordinates required for a
	// match.  The default of 1 is plain coordinate overlap.  MinOverlap and
	// MaxGap are mutually exclusive tolerance modes; when both are set, the
	// overlap-length requirement is measured on unexpanded geometry.
	MinOverlap int64

	// MaxGap widens every indexed interval symmetrically before tree
	// construction, so intervals separated by up to MaxGap coordinates still
	// match.  0 disables expansion.
	MaxGap int64

	// BroadcastBudget is the largest indexed-side size hint still eligible
	// for plan ReplicateIndex.  Its unit must match Side.SizeHint; the
	// default assumes bytes.
	BroadcastBudget int64

	// Strategy pins the physical plan.  AutoStrategy (the zero value) lets
	// Pick decide from the size hint and budget.
	Strategy Strategy

	// Parallelism bounds the number of concurrent workers in every
	// data-parallel stage.  0 means runtime.NumCPU().
	Parallelism int

	// DropMalformed controls the malformed-interval policy on the indexed
	// side: false fails the join on the first Start > End record, true drops
	// such records and logs a count.
	DropMalformed bool

	// IndexReplicaPath, when nonempty, makes plan PartitionIndex write its
	// id-keyed index to this path after construction (see WriteReplicaFile).
	// It has no effect under plan ReplicateIndex, whose index holds real
	// payloads and is not serializable.
	IndexReplicaPath string
}

// DefaultOpts sets the default values for Opts.
var DefaultOpts = Opts{
	MinOverlap:      1,
	MaxGap:          0,
	BroadcastBudget: 64 << 20, // bytes
	Strategy:        AutoStrategy,
}
