package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPick(t *testing.T) {
	tests := []struct {
		sizeHint, budget int64
		want             Strategy
	}{
		{0, 0, ReplicateIndex}, // an empty side is trivially broadcastable
		{100, 100, ReplicateIndex},
		{101, 100, PartitionIndex},
		{1 << 40, 64 << 20, PartitionIndex},
		{1, 64 << 20, ReplicateIndex},
	}
	for _, tt := range tests {
		dec := Pick(tt.sizeHint, tt.budget)
		assert.Equal(t, tt.want, dec.Strategy, "hint=%d budget=%d", tt.sizeHint, tt.budget)
		assert.NotEmpty(t, dec.Reason)
	}
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "auto", AutoStrategy.String())
	assert.Equal(t, "replicate-index", ReplicateIndex.String())
	assert.Equal(t, "partition-index", PartitionIndex.String())
}
