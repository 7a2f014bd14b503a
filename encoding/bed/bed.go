// Package bed reads BED3/BED4 interval files as overlap-join input streams.
//
// BED coordinates are 0-based half-open [start, end); join records use closed
// coordinates, so each line becomes [start, end-1].  ReadOpts.OneBasedInput
// handles 1-based closed inputs instead.  Every record's payload is a *Fields
// carrying the original column values so downstream output can print what the
// user wrote.
package bed

import (
	"bufio"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/overlapjoin/join"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Fields holds one BED line's columns in the input's original coordinate
// convention.  Name is empty for BED3 lines.
type Fields struct {
	Chrom string
	Start int64
	End   int64
	Name  string
}

// ReadOpts defines behavior of this package's BED readers.
type ReadOpts struct {
	// OneBasedInput interprets interval boundaries as one-based [start, end]
	// instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// Reader streams BED lines as join.Records.  It implements join.Stream.
type Reader struct {
	scanner *bufio.Scanner
	opts    ReadOpts

	rec     join.Record
	err     error
	done    bool
	lineIdx int

	nSkipped  int64
	chroms    []string
	chromSeen map[string]bool

	closeGzip *gzip.Reader
	closeFile file.File
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, opts ReadOpts) *Reader {
	return &Reader{
		scanner:   bufio.NewScanner(r),
		opts:      opts,
		chromSeen: make(map[string]bool),
	}
}

// Open returns a Reader over the BED file at path.  s3:// paths are
// supported, and a path ending .gz is decompressed transparently.  The caller
// must Close the Reader.
func Open(path string, opts ReadOpts) (*Reader, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "bed: open %s", path)
	}
	reader := io.Reader(in.Reader(ctx))
	var gz *gzip.Reader
	if fileio.DetermineType(path) == fileio.Gzip {
		if gz, err = gzip.NewReader(reader); err != nil {
			_ = in.Close(ctx)
			return nil, errors.Wrapf(err, "bed: open %s", path)
		}
		reader = gz
	}
	r := NewReader(reader, opts)
	r.closeGzip = gz
	r.closeFile = in
	return r, nil
}

// Close releases the underlying file, if the Reader owns one.
func (r *Reader) Close() error {
	var err error
	if r.closeGzip != nil {
		err = r.closeGzip.Close()
		r.closeGzip = nil
	}
	if r.closeFile != nil {
		if cerr := r.closeFile.Close(vcontext.Background()); cerr != nil && err == nil {
			err = cerr
		}
		r.closeFile = nil
	}
	return err
}

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any group of characters <= ' ' is
// treated as a delimiter.  Operating on the scanner's byte slice avoids a
// per-line string allocation.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// Scan implements join.Stream.  Blank lines and empty intervals are skipped
// (the latter counted); any malformed line stops the stream with an error
// naming the line number.
func (r *Reader) Scan() bool {
	if r.done || r.err != nil {
		return false
	}
	var startSubtract int64
	if r.opts.OneBasedInput {
		startSubtract = 1
	}
	var tokens [4][]byte
	for r.scanner.Scan() {
		r.lineIdx++
		curLine := r.scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if nToken < 3 {
			r.err = errors.Errorf("bed: line %d has fewer tokens than expected", r.lineIdx)
			return false
		}

		parsedStart, err := strconv.ParseInt(gunsafe.BytesToString(tokens[1]), 10, 64)
		if err != nil {
			r.err = errors.Wrapf(err, "bed: line %d: bad start coordinate", r.lineIdx)
			return false
		}
		parsedEnd, err := strconv.ParseInt(gunsafe.BytesToString(tokens[2]), 10, 64)
		if err != nil {
			r.err = errors.Wrapf(err, "bed: line %d: bad end coordinate", r.lineIdx)
			return false
		}
		start0 := parsedStart - startSubtract
		if start0 < 0 {
			r.err = errors.Errorf("bed: line %d: negative start coordinate %d", r.lineIdx, parsedStart)
			return false
		}
		if parsedEnd < start0 {
			r.err = errors.Errorf("bed: line %d: end coordinate %d before start %d",
				r.lineIdx, parsedEnd, parsedStart)
			return false
		}
		// Must copy: tokens reference scanner bytes that the next Scan
		// overwrites.
		chrom := string(tokens[0])
		if !r.chromSeen[chrom] {
			r.chromSeen[chrom] = true
			r.chroms = append(r.chroms, chrom)
		}
		if parsedEnd == start0 {
			r.nSkipped++
			continue
		}
		fields := &Fields{Chrom: chrom, Start: parsedStart, End: parsedEnd}
		if nToken > 3 {
			fields.Name = string(tokens[3])
		}
		r.rec = join.Record{
			Chrom:   chrom,
			Start:   start0,
			End:     parsedEnd - 1,
			Payload: fields,
		}
		return true
	}
	r.done = true
	if serr := r.scanner.Err(); serr != nil {
		r.err = errors.Wrap(serr, "bed: scan")
	}
	return false
}

// Record implements join.Stream.
func (r *Reader) Record() join.Record { return r.rec }

// Err implements join.Stream.
func (r *Reader) Err() error { return r.err }

// Skipped returns the number of empty intervals dropped so far.
func (r *Reader) Skipped() int64 { return r.nSkipped }

// Chromosomes returns the distinct chromosome names seen so far, in
// first-seen order.  It is complete once Scan has returned false.
func (r *Reader) Chromosomes() []string { return r.chroms }
