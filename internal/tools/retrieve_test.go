package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

type constEmbedder struct{ vec []float32 }

func (c constEmbedder) Call(ctx context.Context, texts []string, kind gateway.EmbedKind, tag gateway.ChatTag) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = c.vec
	}
	return out, nil
}

func newRetrieveTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	s, err := store.NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err, "failed to create store")
	idx := vectorindex.New(s.DB())
	return New(s, idx, constEmbedder{vec: []float32{1, 0, 0}}, zerolog.Nop())
}

func TestSearchEntity_FormatsHitsAndRelationships(t *testing.T) {
	d := newRetrieveTestDispatcher(t)

	_, err := d.Store.CreateNode(store.Node{ID: "peter", NodeType: store.NodeEntity, Subtype: "person", Content: "Peter -- senior content writer at WOBS", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, d.Store.PutEmbedding("peter", store.NodeEntity, []float32{1, 0, 0}))

	_, err = d.Store.CreateNode(store.Node{ID: "wobs", NodeType: store.NodeEntity, Subtype: "org", Content: "WOBS", Source: store.SourceUser})
	require.NoError(t, err)
	_, err = d.Store.CreateEdge("e1", "peter", "wobs", "works_for", nil)
	require.NoError(t, err)

	args, _ := json.Marshal(map[string]string{"name": "Peter"})
	out, err := d.SearchEntity(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, out, "content writer")
	assert.Contains(t, out, "WOBS")
	assert.Contains(t, out, "→ works_for → WOBS (entity)")

	hits := d.SeenHits()
	require.Len(t, hits, 1, "expected SearchEntity to record the hit")
	assert.Equal(t, "peter", hits[0].NodeID)
}

func TestSearchEntity_RequiresName(t *testing.T) {
	d := newRetrieveTestDispatcher(t)
	args, _ := json.Marshal(map[string]string{"name": "  "})
	_, err := d.SearchEntity(context.Background(), args)
	assert.Error(t, err, "expected an error for a blank name")
}

func TestSearchEntity_NoMatchesReturnsPlainMessage(t *testing.T) {
	d := newRetrieveTestDispatcher(t)
	args, _ := json.Marshal(map[string]string{"name": "Nobody"})
	out, err := d.SearchEntity(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, "no matching entities found", out)
}

func TestGetInstructions_TopicMatchesAnyStem(t *testing.T) {
	d := newRetrieveTestDispatcher(t)
	_, err := d.Store.CreateNode(store.Node{ID: "rule1", NodeType: store.NodeInstruction,
		Content: "When a writer misses a deadline, notify the client through Lisa within 24 hours.",
		Source:  store.SourceUser})
	require.NoError(t, err)

	args, _ := json.Marshal(map[string]string{"topic": "missed deadlines"})
	out, err := d.GetInstructions(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, out, "Lisa")
	assert.Contains(t, out, "24 hours")
}

func TestGetInstructions_EntityScopedUsesEdges(t *testing.T) {
	d := newRetrieveTestDispatcher(t)
	_, err := d.Store.CreateNode(store.Node{ID: "peter", NodeType: store.NodeEntity, Content: "Peter", Source: store.SourceUser})
	require.NoError(t, err)
	_, err = d.Store.CreateNode(store.Node{ID: "rule1", NodeType: store.NodeInstruction, Content: "Always loop Peter in on client emails", Source: store.SourceUser})
	require.NoError(t, err)
	_, err = d.Store.CreateEdge("e1", "peter", "rule1", "about", nil)
	require.NoError(t, err)

	args, _ := json.Marshal(map[string]string{"entity_id": "peter"})
	out, err := d.GetInstructions(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, out, "loop Peter in")
}
