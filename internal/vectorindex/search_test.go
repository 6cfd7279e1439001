package vectorindex

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gomemory/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err, "failed to create store")
	return s
}

func TestSearch_NodeIDsFilterForcesBruteForce(t *testing.T) {
	s := newTestStore(t)
	idx := New(s.DB())

	_, err := s.CreateNode(store.Node{ID: "a", NodeType: store.NodeFact, Content: "alpha", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding("a", store.NodeFact, []float32{1, 0, 0}))

	_, err = s.CreateNode(store.Node{ID: "b", NodeType: store.NodeFact, Content: "beta", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding("b", store.NodeFact, []float32{0, 1, 0}))

	results, err := idx.Search([]float32{1, 0, 0}, 10, store.SearchFilter{NodeIDs: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, results, 1, "expected the node_ids filter to restrict to node b")
	assert.Equal(t, "b", results[0].NodeID)
}

func TestSearch_ExcludesSupersededNodes(t *testing.T) {
	s := newTestStore(t)
	idx := New(s.DB())

	_, err := s.CreateNode(store.Node{ID: "old", NodeType: store.NodeFact, Content: "old fact", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding("old", store.NodeFact, []float32{1, 0, 0}))
	_, err = s.SupersedeNode("old", "a brand new fact that replaces the old one", "new-id")
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 0, 0}, 10, store.SearchFilter{NodeTypes: []store.NodeType{store.NodeFact}})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "old", r.NodeID, "expected the superseded node to be excluded from search results")
	}
}

func TestSearch_ScoresBySalienceWeightedCosine(t *testing.T) {
	s := newTestStore(t)
	idx := New(s.DB())

	_, err := s.CreateNode(store.Node{ID: "lowsal", NodeType: store.NodeFact, Content: "low salience", Source: store.SourceUser, Salience: 0.1})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding("lowsal", store.NodeFact, []float32{1, 0, 0}))

	results, err := idx.Search([]float32{1, 0, 0}, 10, store.SearchFilter{NodeIDs: []string{"lowsal"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].Score, 0.11, "expected score to be cosine(=1) * salience(0.1) ~= 0.1")
}
