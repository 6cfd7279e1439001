package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageAggregatorAddsAndSnapshots(t *testing.T) {
	a := NewUsageAggregator()
	a.Add(TagL1, Usage{PromptTokens: 10, CompletionTokens: 5})
	a.Add(TagL1, Usage{PromptTokens: 3, CompletionTokens: 1})
	a.Add(TagCurate, Usage{PromptTokens: 2, CompletionTokens: 0})

	snap := a.Snapshot()
	assert.Equal(t, 13, snap[TagL1].PromptTokens)
	assert.Equal(t, 6, snap[TagL1].CompletionTokens)
	assert.Equal(t, 2, snap[TagCurate].PromptTokens)
}

func TestUsageAggregatorResetClears(t *testing.T) {
	a := NewUsageAggregator()
	a.Add(TagL2, Usage{PromptTokens: 99})
	a.Reset()
	snap := a.Snapshot()
	_, ok := snap[TagL2]
	assert.False(t, ok, "expected Reset to clear accumulated usage")
}

func TestUsageAggregatorSnapshotIsACopy(t *testing.T) {
	a := NewUsageAggregator()
	a.Add(TagL1, Usage{PromptTokens: 1})
	snap := a.Snapshot()
	snap[TagL1] = Usage{PromptTokens: 999}

	require.Contains(t, a.Snapshot(), TagL1)
	assert.Equal(t, 1, a.Snapshot()[TagL1].PromptTokens, "expected Snapshot to return a defensive copy")
}
