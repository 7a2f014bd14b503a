package join

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/overlapjoin/interval"
	"v.io/x/lib/vlog"
)

// Replica format: the serialized form of plan PartitionIndex's id-keyed
// forest, for execution substrates that replicate the index across process
// boundaries.  The file is a recordio.  The header key replicaChromsHeader
// carries the NUL-joined chromosome name table.  Each recordio item is one
// snappy-compressed block of consecutive fixed-layout entries, with no
// padding between entries:
//
//   chromIndex uint32   // position in the name table
//   start      int64
//   end        int64
//   idCount    uint32
//   ids        [idCount]uint32
//
// Blocks are approx. replicaBlockSize bytes pre-compression.  The trailer is
// three little-endian int64s: format version, total entry count, flags.
const (
	replicaChromsHeader = "Chromosomes"
	replicaVersion      = 1
	replicaFlagSnappy   = 1
	replicaBlockSize    = 1 << 20
)

// WriteReplica serializes f to out.  f must be an id-keyed forest as built by
// plan PartitionIndex: every payload a dense int32 synthetic id.  A forest
// holding real payloads is not serializable and is rejected.
func WriteReplica(out io.Writer, f *interval.Forest) error {
	chroms := f.Chromosomes()
	rio := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal: func(scratch []byte, v interface{}) ([]byte, error) {
			return v.([]byte), nil
		},
	})
	rio.AddHeader(replicaChromsHeader, strings.Join(chroms, "\000"))
	rio.AddHeader(recordio.KeyTrailer, true)

	var (
		block    []byte
		nEntries int64
		err      error
	)
	flush := func() {
		if len(block) == 0 {
			return
		}
		// The writer may marshal asynchronously, so each block gets its own
		// compression buffer.
		rio.Append(snappy.Encode(nil, block))
		rio.Flush()
		block = block[:0]
	}
	for ci, chrom := range chroms {
		f.Each(chrom, func(e interval.Entry) {
			if err != nil {
				return
			}
			block = appendUint32(block, uint32(ci))
			block = appendUint64(block, uint64(e.Interval.Start))
			block = appendUint64(block, uint64(e.Interval.End))
			block = appendUint32(block, uint32(len(e.Payloads)))
			for _, p := range e.Payloads {
				id, ok := p.(int32)
				if !ok {
					err = fmt.Errorf("join.WriteReplica: %s:[%d, %d]: payload %T is not a synthetic id",
						chrom, e.Interval.Start, e.Interval.End, p)
					return
				}
				block = appendUint32(block, uint32(id))
			}
			nEntries++
			if len(block) >= replicaBlockSize {
				flush()
			}
		})
		if err != nil {
			return err
		}
	}
	flush()
	rio.SetTrailer(replicaTrailer(nEntries))
	if err := rio.Finish(); err != nil {
		return err
	}
	vlog.VI(1).Infof("replica: wrote %d entries across %d chromosome(s)", nEntries, len(chroms))
	return nil
}

// ReadReplica rebuilds a forest from a replica written by WriteReplica.  The
// result answers every query identically to the original.
func ReadReplica(rs io.ReadSeeker) (*interval.Forest, error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: func(in []byte) (interface{}, error) {
			return snappy.Decode(nil, in)
		},
	})
	var chroms []string
	for _, kv := range scanner.Header() {
		// Unrecognized keys are not an error; recordio writes its own.
		if kv.Key == replicaChromsHeader {
			if packed := kv.Value.(string); packed != "" {
				chroms = strings.Split(packed, "\000")
			}
		}
	}
	nEntries, err := parseReplicaTrailer(scanner.Trailer())
	if err != nil {
		return nil, err
	}

	var items []interval.Item
	for scanner.Scan() {
		block := scanner.Get().([]byte)
		for len(block) > 0 {
			if len(block) < 24 {
				return nil, fmt.Errorf("join.ReadReplica: truncated entry (%d trailing bytes)", len(block))
			}
			ci := binary.LittleEndian.Uint32(block[:4])
			if int(ci) >= len(chroms) {
				return nil, fmt.Errorf("join.ReadReplica: chromosome index %d out of range", ci)
			}
			iv := interval.Interval{
				Start: int64(binary.LittleEndian.Uint64(block[4:12])),
				End:   int64(binary.LittleEndian.Uint64(block[12:20])),
			}
			idCount := int(binary.LittleEndian.Uint32(block[20:24]))
			block = block[24:]
			if len(block) < 4*idCount {
				return nil, fmt.Errorf("join.ReadReplica: truncated id list (%d of %d ids)",
					len(block)/4, idCount)
			}
			for k := 0; k < idCount; k++ {
				items = append(items, interval.Item{
					Chrom:    chroms[ci],
					Interval: iv,
					Payload:  int32(binary.LittleEndian.Uint32(block[4*k : 4*k+4])),
				})
			}
			block = block[4*idCount:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	vlog.VI(1).Infof("replica: read %d item(s) across %d chromosome(s)", len(items), len(chroms))
	f, err := interval.NewForest(items, interval.ForestOpts{})
	if err != nil {
		return nil, err
	}
	if int64(f.Len()) != nEntries {
		return nil, fmt.Errorf("join.ReadReplica: trailer promises %d entries, file holds %d",
			nEntries, f.Len())
	}
	return f, nil
}

// WriteReplicaFile is WriteReplica to a path (s3:// included).
func WriteReplicaFile(path string, f *interval.Forest) (err error) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteReplica(out.Writer(ctx), f)
}

// ReadReplicaFile is ReadReplica from a path.
func ReadReplicaFile(path string) (f *interval.Forest, err error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadReplica(in.Reader(ctx))
}

func replicaTrailer(nEntries int64) []byte {
	var buf bytes.Buffer
	for _, v := range []int64{replicaVersion, nEntries, replicaFlagSnappy} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func parseReplicaTrailer(trailer []byte) (nEntries int64, err error) {
	r := bytes.NewReader(trailer)
	var version, flags int64
	if err = binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, fmt.Errorf("join.ReadReplica: bad trailer: %v", err)
	}
	if version != replicaVersion {
		return 0, fmt.Errorf("join.ReadReplica: unrecognized version: got %d, want %d",
			version, replicaVersion)
	}
	if err = binary.Read(r, binary.LittleEndian, &nEntries); err != nil {
		return 0, fmt.Errorf("join.ReadReplica: bad trailer: %v", err)
	}
	if err = binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return 0, fmt.Errorf("join.ReadReplica: bad trailer: %v", err)
	}
	if flags&replicaFlagSnappy == 0 {
		return 0, fmt.Errorf("join.ReadReplica: uncompressed replicas are not supported (flags %#x)", flags)
	}
	return nEntries, nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
