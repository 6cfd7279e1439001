package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err, "failed to create store")
	return s
}

func TestCreateAndGetNode(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateNode(Node{ID: "n1", NodeType: NodeEntity, Subtype: "person", Content: "Alice", Source: SourceUser})
	require.NoError(t, err)

	n, err := s.GetNode(id)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Alice", n.Content)
	assert.Equal(t, NodeEntity, n.NodeType)
	assert.Equal(t, 1.0, n.Salience)
	assert.Equal(t, 1.0, n.Confidence)
}

func TestCreateNodeForcesInstructionDefaults(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateNode(Node{ID: "i1", NodeType: NodeInstruction, Content: "Always CC the team lead", Source: SourceUser, CanSummarize: true})
	require.NoError(t, err)
	n, err := s.GetNode(id)
	require.NoError(t, err)
	assert.False(t, n.CanSummarize, "expected instruction nodes to force can_summarize=false")
	require.NotNil(t, n.Scope)
	assert.Equal(t, 0.5, *n.Scope)
}

func TestCreateEdgeRejectsMissingEndpoint(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode(Node{ID: "e1", NodeType: NodeEntity, Content: "Bob", Source: SourceUser})
	require.NoError(t, err)

	_, err = s.CreateEdge("edge1", "e1", "missing", "relates_to", nil)
	assert.Error(t, err, "expected error for missing endpoint")
}

func TestGetRelationshipsExcludesSuperseded(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode(Node{ID: "a", NodeType: NodeEntity, Content: "Alice", Source: SourceUser})
	require.NoError(t, err)
	_, err = s.CreateNode(Node{ID: "b", NodeType: NodeFact, Content: "Alice likes tea", Source: SourceUser})
	require.NoError(t, err)
	_, err = s.CreateEdge("ab", "a", "b", "about", nil)
	require.NoError(t, err)

	rel, err := s.GetRelationships("a")
	require.NoError(t, err)
	require.Len(t, rel, 1)

	_, err = s.SupersedeNode("b", "Alice likes coffee now", "b2")
	require.NoError(t, err)

	rel, err = s.GetRelationships("a")
	require.NoError(t, err)
	require.Len(t, rel, 1, "expected only the edge copied to the replacement to remain")
	assert.Equal(t, "b2", rel[0].Other.ID, "expected superseded node's relationship to be excluded")
}

func TestSupersedeNodeRejectsGarbledContent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode(Node{ID: "f1", NodeType: NodeFact, Content: "The sky is blue", Source: SourceUser})
	require.NoError(t, err)

	_, err = s.SupersedeNode("f1", "!!! ??? ...", "f2")
	assert.Error(t, err, "expected garbled replacement content to be rejected")
}

func TestPromotePlanToEventIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateNode(Node{ID: "p1", NodeType: NodePlan, Content: "Call the dentist", Source: SourceUser})
	require.NoError(t, err)

	n, err := s.PromotePlanToEvent("p1")
	require.NoError(t, err)
	assert.Equal(t, NodeEvent, n.NodeType)
	assert.Equal(t, "completed_plan", n.Subtype)

	again, err := s.PromotePlanToEvent("p1")
	require.NoError(t, err)
	assert.Equal(t, NodeEvent, again.NodeType)
	assert.Equal(t, "completed_plan", again.Subtype)
}

func TestIsGarbled(t *testing.T) {
	assert.False(t, IsGarbled("This is a perfectly normal sentence."))
	assert.True(t, IsGarbled("!@#$%^&*()"))
}

func TestRepeatedWordRatio(t *testing.T) {
	assert.GreaterOrEqual(t, RepeatedWordRatio("the the the the cat"), 0.7)
	assert.LessOrEqual(t, RepeatedWordRatio("a quick brown fox jumps"), 0.3)
}
