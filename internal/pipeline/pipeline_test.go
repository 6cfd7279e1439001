package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gomemory/internal/config"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/storeloop"
)

func TestProcessPrompt_EmptyPromptShortCircuits(t *testing.T) {
	p := &Pipeline{Config: config.Config{}, Log: zerolog.Nop()}

	out, tr := p.ProcessPrompt(context.Background(), "   ")
	assert.Empty(t, out, "expected empty context for a blank prompt")
	require.NotNil(t, tr, "expected a non-nil trace even for a short-circuited prompt")
	assert.Empty(t, tr.Classification.Entities, "expected no classification to run for a blank prompt")
}

func TestExtractStoredID_ParsesStoreMemoryResultLine(t *testing.T) {
	line := "stored fact node abc-123: Peter writes for WOBS"
	assert.Equal(t, "abc-123", extractStoredID(line))
}

func TestExtractStoredID_ReturnsEmptyForUnrecognizedFormat(t *testing.T) {
	assert.Empty(t, extractStoredID("no marker here"))
}

func TestNewInstructionIDs_IgnoresNonInstructionForceStores(t *testing.T) {
	s, err := store.NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err, "failed to create store")
	_, err = s.CreateNode(store.Node{ID: "fact1", NodeType: store.NodeFact, Content: "some content", Source: store.SourceUser})
	require.NoError(t, err)

	res := storeloop.Result{ForceStored: []string{"stored fact node fact1: some content"}}
	ids := newInstructionIDs(res, s, zerolog.Nop())
	assert.Empty(t, ids, "expected no ids for a non-instruction node")
}

func TestNewInstructionIDs_CollectsInstructionIDs(t *testing.T) {
	s, err := store.NewSQLiteStore(zerolog.Nop())
	require.NoError(t, err, "failed to create store")
	_, err = s.CreateNode(store.Node{ID: "instr1", NodeType: store.NodeInstruction, Content: "always CC the lead", Source: store.SourceUser})
	require.NoError(t, err)

	res := storeloop.Result{ForceStored: []string{"stored instruction node instr1: always CC the lead"}}
	ids := newInstructionIDs(res, s, zerolog.Nop())
	assert.Equal(t, []string{"instr1"}, ids)
}
