package main

/*
bio-overlap-join computes an interval overlap join between two BED files: one
output row per (index record, probe record) pair whose intervals overlap,
optionally under a minimum-overlap or gap tolerance.
*/

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/overlapjoin/encoding/bed"
	"github.com/grailbio/overlapjoin/interval"
	"github.com/grailbio/overlapjoin/join"
	"github.com/klauspost/compress/gzip"
)

var (
	minOverlap      = flag.Int64("min-overlap", join.DefaultOpts.MinOverlap, "Minimum number of shared coordinates for a match")
	maxGap          = flag.Int64("max-gap", join.DefaultOpts.MaxGap, "Maximum coordinate gap between intervals still considered a match")
	broadcastBudget = flag.Int64("broadcast-budget", join.DefaultOpts.BroadcastBudget, "Largest index-side byte size still eligible for the replicate-index plan")
	parallelism     = flag.Int("parallelism", 0, "Maximum number of concurrent join workers; 0 = runtime.NumCPU()")
	strategyFlag    = flag.String("strategy", "auto", "Physical plan; 'auto', 'replicate', or 'partition'")
	dropMalformed   = flag.Bool("drop-malformed", false, "Drop index records with end before start instead of failing")
	oneBased        = flag.Bool("one-based", false, "Interpret BED coordinates as one-based [start, end] instead of zero-based [start, end)")
	indexReplica    = flag.String("index-replica", "", "Under the partition-index plan, write the built index to this path")
	digestFlag      = flag.Bool("digest", false, "Print an order-insensitive digest of the result to stderr")
	outPath         = flag.String("out", "", "Output TSV path (gzipped if it ends .gz); default stdout")
	probeShards     = flag.Int("probe-shards", 0, "Number of parallel probe shards; 0 = runtime.NumCPU()")
)

func overlapJoinUsage() {
	fmt.Printf("Usage: %s [OPTIONS] index.bed probe.bed\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func parseStrategy(s string) (join.Strategy, error) {
	switch s {
	case "auto":
		return join.AutoStrategy, nil
	case "replicate":
		return join.ReplicateIndex, nil
	case "partition":
		return join.PartitionIndex, nil
	}
	return 0, fmt.Errorf("unrecognized -strategy %q (want auto, replicate, or partition)", s)
}

// closed converts a BED line's original coordinates to the closed interval
// the join operated on.
func closed(f *bed.Fields) interval.Interval {
	start := f.Start
	if *oneBased {
		start--
	}
	return interval.Interval{Start: start, End: f.End - 1}
}

func main() {
	flag.Usage = overlapJoinUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 2 {
		log.Fatalf("Expected 2 positional arguments (index.bed probe.bed), got %d", flag.NArg())
	}
	indexPath, probePath := flag.Arg(0), flag.Arg(1)
	ctx := vcontext.Background()
	startTime := time.Now()

	opts := join.DefaultOpts
	opts.MinOverlap = *minOverlap
	opts.MaxGap = *maxGap
	opts.BroadcastBudget = *broadcastBudget
	opts.Parallelism = *parallelism
	opts.DropMalformed = *dropMalformed
	opts.IndexReplicaPath = *indexReplica
	var err error
	if opts.Strategy, err = parseStrategy(*strategyFlag); err != nil {
		log.Fatalf("%v", err)
	}

	bedOpts := bed.ReadOpts{OneBasedInput: *oneBased}
	indexReader, err := bed.Open(indexPath, bedOpts)
	if err != nil {
		log.Fatalf("%s: %v", indexPath, err)
	}
	info, err := file.Stat(ctx, indexPath)
	if err != nil {
		log.Fatalf("%s: stat: %v", indexPath, err)
	}
	sideA := join.Side{Shards: []join.Stream{indexReader}, SizeHint: info.Size()}

	// The probe side is materialized so it can be split into parallel shards.
	probeReader, err := bed.Open(probePath, bedOpts)
	if err != nil {
		log.Fatalf("%s: %v", probePath, err)
	}
	var probeRecs []join.Record
	for probeReader.Scan() {
		probeRecs = append(probeRecs, probeReader.Record())
	}
	if err = probeReader.Err(); err != nil {
		log.Fatalf("%s: %v", probePath, err)
	}
	nShards := *probeShards
	if nShards <= 0 {
		nShards = runtime.NumCPU()
	}
	sideB := join.SliceSide(probeRecs, nShards, 0)
	log.Printf("%s: %d probe record(s), %d empty skipped", probePath, len(probeRecs), probeReader.Skipped())

	if opts.Strategy == join.AutoStrategy {
		dec := join.Pick(sideA.SizeHint, opts.BroadcastBudget)
		log.Printf("plan %s: %s", dec.Strategy, dec.Reason)
		opts.Strategy = dec.Strategy
	} else {
		log.Printf("plan %s: pinned by -strategy", opts.Strategy)
	}

	joiner := join.Joiner{Opts: opts}
	pairs, err := joiner.Join(sideA, sideB)
	if err != nil {
		log.Fatalf("join: %v", err)
	}
	if cerr := indexReader.Close(); cerr != nil {
		log.Fatalf("%s: close: %v", indexPath, cerr)
	}
	if cerr := probeReader.Close(); cerr != nil {
		log.Fatalf("%s: close: %v", probePath, cerr)
	}

	if err = writePairs(pairs); err != nil {
		log.Fatalf("write: %v", err)
	}
	if *digestFlag {
		fmt.Fprintf(os.Stderr, "digest: %016x\n", join.Digest(pairs))
	}
	reportUnmatchedChromosomes(indexReader.Chromosomes(), probeReader.Chromosomes())
	log.Printf("%d pair(s) in %v", len(pairs), time.Since(startTime))
}

func writePairs(pairs []join.Pair) (err error) {
	ctx := vcontext.Background()
	w := io.Writer(os.Stdout)
	if *outPath != "" {
		out, err := file.Create(ctx, *outPath)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := out.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = out.Writer(ctx)
		if fileio.DetermineType(*outPath) == fileio.Gzip {
			gz := gzip.NewWriter(w)
			defer func() {
				if cerr := gz.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			w = gz
		}
	}
	outTSV := tsv.NewWriter(w)
	for _, p := range pairs {
		a := p.A.(*bed.Fields)
		b := p.B.(*bed.Fields)
		outTSV.WriteString(a.Chrom)
		outTSV.WriteInt64(a.Start)
		outTSV.WriteInt64(a.End)
		outTSV.WriteString(a.Name)
		outTSV.WriteInt64(b.Start)
		outTSV.WriteInt64(b.End)
		outTSV.WriteString(b.Name)
		outTSV.WriteInt64(closed(a).OverlapLength(closed(b)))
		if err = outTSV.EndLine(); err != nil {
			return err
		}
	}
	return outTSV.Flush()
}

// reportUnmatchedChromosomes warns about probe chromosomes absent from the
// index, suggesting a near-identical index name where one exists to catch
// chr1-vs-1 style convention mismatches.  Advisory only.
func reportUnmatchedChromosomes(indexChroms, probeChroms []string) {
	indexed := make(map[string]bool, len(indexChroms))
	for _, c := range indexChroms {
		indexed[c] = true
	}
	for _, c := range probeChroms {
		if indexed[c] {
			continue
		}
		hint := ""
		for _, ic := range indexChroms {
			if matchr.Levenshtein(c, ic) <= 2 {
				hint = fmt.Sprintf(" (did you mean %s?)", ic)
				break
			}
		}
		log.Printf("probe chromosome %s has no index intervals%s", c, hint)
	}
}
