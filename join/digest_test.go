package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestPermutationInvariant(t *testing.T) {
	p1 := Pair{A: "a1", B: "b1"}
	p2 := Pair{A: "a2", B: "b2"}
	p3 := Pair{A: 3, B: 4}
	assert.Equal(t, Digest([]Pair{p1, p2, p3}), Digest([]Pair{p3, p1, p2}))
}

func TestDigestDuplicateSensitive(t *testing.T) {
	p := Pair{A: "a", B: "b"}
	assert.NotEqual(t, Digest([]Pair{p}), Digest([]Pair{p, p}))
}

func TestDigestDistinguishesPairs(t *testing.T) {
	assert.NotEqual(t,
		Digest([]Pair{{A: "a", B: "b"}}),
		Digest([]Pair{{A: "b", B: "a"}}))
	assert.NotEqual(t,
		Digest([]Pair{{A: "a", B: "b"}}),
		Digest([]Pair{{A: "a", B: "c"}}))
}

func TestDigestEmpty(t *testing.T) {
	assert.Equal(t, uint64(0), Digest(nil))
}
