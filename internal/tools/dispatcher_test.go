package tools

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

func newTestDispatcher() *Dispatcher {
	return New(nil, nil, nil, zerolog.Nop())
}

func TestDispatcher_RecordHitAndSeenHits(t *testing.T) {
	d := newTestDispatcher()
	d.recordHit("node1", 0.9)
	d.recordHit("node2", 0.5)

	hits := d.SeenHits()
	require.Len(t, hits, 2)
	assert.Equal(t, "node1", hits[0].NodeID)
	assert.Equal(t, 0.9, hits[0].Score)
}

func TestDispatcher_SeenHits_ReturnsCopy(t *testing.T) {
	d := newTestDispatcher()
	d.recordHit("node1", 0.9)

	hits := d.SeenHits()
	hits[0].Score = 0.0

	assert.Equal(t, 0.9, d.SeenHits()[0].Score, "expected SeenHits to return a defensive copy, not a live slice")
}

func TestDispatcher_RememberAndKnownEntity(t *testing.T) {
	d := newTestDispatcher()
	d.rememberEntity("Acme Project", "id-123")

	assert.Equal(t, "id-123", d.KnownEntityID("Acme Project"))
	assert.Equal(t, "id-123", d.KnownEntityID("acme project"), "expected canonicalized lookup to match regardless of case")
	assert.Empty(t, d.KnownEntityID("unknown entity"))
}

func TestDispatcher_KnownEntityIDs_ReturnsSnapshot(t *testing.T) {
	d := newTestDispatcher()
	d.rememberEntity("Bob", "id-1")
	d.rememberEntity("Alice", "id-2")

	snap := d.KnownEntityIDs()
	require.Len(t, snap, 2)
	snap["bob"] = "mutated"
	assert.Equal(t, "id-1", d.KnownEntityID("Bob"), "expected KnownEntityIDs to return a defensive copy")
}

func TestDispatcher_RememberEntity_IgnoresEmptyKey(t *testing.T) {
	d := newTestDispatcher()
	d.rememberEntity("   ", "id-1")
	assert.Empty(t, d.KnownEntityIDs(), "expected whitespace-only name to be ignored")
}

func TestFormatNode_WithAndWithoutSubtype(t *testing.T) {
	n := store.Node{ID: "n1", NodeType: store.NodeFact, Subtype: "definitional", Content: "sky is blue", Salience: 0.8}
	out := formatNode(n, 0.55)
	assert.Equal(t, "[fact/definitional] sky is blue (n1, 0.80) [0.550]", out)

	n2 := store.Node{ID: "n2", NodeType: store.NodeEntity, Content: "Bob", Salience: 1.0}
	out2 := formatNode(n2, 0.1)
	assert.Equal(t, "[entity/-] Bob (n2, 1.00) [0.100]", out2)
}

func TestDedupResults(t *testing.T) {
	in := []vectorindex.Result{{NodeID: "a"}, {NodeID: "b"}, {NodeID: "a"}}
	out := dedupResults(in)
	assert.Len(t, out, 2)
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "a\nb\nc", joinLines([]string{"a", "b", "c"}))
}
