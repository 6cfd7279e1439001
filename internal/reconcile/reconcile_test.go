package reconcile

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Call(ctx context.Context, texts []string, kind gateway.EmbedKind, tag gateway.ChatTag) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type scriptedChat struct {
	verdict string
}

func (c *scriptedChat) Call(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error) {
	return gateway.ChatResponse{Content: c.verdict}, nil
}

func newTestStoreAndIndex(t *testing.T) (*store.SQLiteStore, *vectorindex.Index) {
	t.Helper()
	s, err := store.NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err, "failed to create store")
	return s, vectorindex.New(s.DB())
}

func TestRun_SupersedesOnVerdict(t *testing.T) {
	s, idx := newTestStoreAndIndex(t)

	oldID, err := s.CreateNode(store.Node{ID: "old1", NodeType: store.NodeInstruction, Content: "Use staging for all deploys", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding(oldID, store.NodeInstruction, []float32{0.1, 0.2, 0.3}))

	newID, err := s.CreateNode(store.Node{ID: "new1", NodeType: store.NodeInstruction, Content: "Lisa now handles all deploys instead of staging", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding(newID, store.NodeInstruction, []float32{0.1, 0.2, 0.3}))

	chat := &scriptedChat{verdict: "SUPERSEDES"}
	flags := Run(context.Background(), s, idx, chat, fakeEmbedder{}, "model", []string{newID}, zerolog.Nop())

	var found bool
	for _, f := range flags {
		if f.Verdict == "SUPERSEDES" && f.OldID == oldID {
			found = true
		}
	}
	require.True(t, found, "expected a SUPERSEDES flag for the old node, got %+v", flags)

	old, err := s.GetNode(oldID)
	require.NoError(t, err)
	assert.NotEmpty(t, old.SupersededBy, "expected the old instruction to be marked superseded")
}

func TestRun_FlagsContradictionWithoutAlteringEitherNode(t *testing.T) {
	s, idx := newTestStoreAndIndex(t)

	oldID, err := s.CreateNode(store.Node{ID: "old2", NodeType: store.NodeInstruction, Content: "Always CC the team lead", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding(oldID, store.NodeInstruction, []float32{0.1, 0.2, 0.3}))

	newID, err := s.CreateNode(store.Node{ID: "new2", NodeType: store.NodeInstruction, Content: "Never CC the team lead", Source: store.SourceUser})
	require.NoError(t, err)
	require.NoError(t, s.PutEmbedding(newID, store.NodeInstruction, []float32{0.1, 0.2, 0.3}))

	chat := &scriptedChat{verdict: "CONTRADICTION"}
	flags := Run(context.Background(), s, idx, chat, fakeEmbedder{}, "model", []string{newID}, zerolog.Nop())

	var found bool
	for _, f := range flags {
		if f.Verdict == "CONTRADICTION" && f.OldID == oldID {
			found = true
		}
	}
	require.True(t, found, "expected a CONTRADICTION flag, got %+v", flags)

	old, err := s.GetNode(oldID)
	require.NoError(t, err)
	assert.Empty(t, old.SupersededBy, "expected CONTRADICTION to leave the old node unaltered")

	newNode, err := s.GetNode(newID)
	require.NoError(t, err)
	assert.Equal(t, "Never CC the team lead", newNode.Content, "expected CONTRADICTION to leave the new node unaltered")
}

func TestRun_SkipsNonInstructionNodes(t *testing.T) {
	s, idx := newTestStoreAndIndex(t)
	factID, err := s.CreateNode(store.Node{ID: "fact1", NodeType: store.NodeFact, Content: "Peter writes for WOBS", Source: store.SourceUser})
	require.NoError(t, err)

	chat := &scriptedChat{verdict: "SUPERSEDES"}
	flags := Run(context.Background(), s, idx, chat, fakeEmbedder{}, "model", []string{factID}, zerolog.Nop())
	assert.Empty(t, flags, "expected no flags for a non-instruction node")
}
