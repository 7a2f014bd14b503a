package join

import (
	"fmt"

	"github.com/minio/highwayhash"
)

var digestKey [highwayhash.Size]byte // zero key, digests need no secrecy

// Digest returns an order-insensitive fingerprint of the pair multiset: each
// pair's fmt-rendered payloads are hashed and the per-pair hashes are summed
// mod 2^64, so permuting pairs leaves the digest unchanged while duplicate
// pairs accumulate.  Two joins over the same inputs must produce equal
// digests regardless of plan; that is the cheap cross-run equivalence check
// the CLI's -digest flag exposes.
func Digest(pairs []Pair) uint64 {
	var sum uint64
	buf := make([]byte, 0, 64)
	for _, p := range pairs {
		buf = append(buf[:0], fmt.Sprintf("%v\x00%v", p.A, p.B)...)
		sum += highwayhash.Sum64(buf, digestKey[:])
	}
	return sum
}
