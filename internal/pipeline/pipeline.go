// Package pipeline wires the classifier, planner/filter, the two agent loops,
// safety nets, assembler, curator, and reconciler into the single
// ProcessPrompt entry point.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/assemble"
	"github.com/kittclouds/gomemory/internal/classify"
	"github.com/kittclouds/gomemory/internal/config"
	"github.com/kittclouds/gomemory/internal/curate"
	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/plan"
	"github.com/kittclouds/gomemory/internal/reconcile"
	"github.com/kittclouds/gomemory/internal/retrieve"
	"github.com/kittclouds/gomemory/internal/safetynet"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/storeloop"
	"github.com/kittclouds/gomemory/internal/tools"
	"github.com/kittclouds/gomemory/internal/trace"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

// Embedder is the gateway capability every stage needs for query/document
// vectors.
type Embedder interface {
	Call(ctx context.Context, texts []string, kind gateway.EmbedKind, tag gateway.ChatTag) ([][]float32, error)
}

// Pipeline holds every dependency ProcessPrompt needs, assembled once at
// startup and reused across prompts.
type Pipeline struct {
	Store *store.SQLiteStore
	Index *vectorindex.Index
	Chat *gateway.Chat
	Embed Embedder
	Usage *gateway.UsageAggregator
	Config config.Config
	Log zerolog.Logger
}

// New builds a Pipeline from its constituent parts.
func New(s *store.SQLiteStore, idx *vectorindex.Index, chat *gateway.Chat, embed Embedder, usage *gateway.UsageAggregator, cfg config.Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{Store: s, Index: idx, Chat: chat, Embed: embed, Usage: usage, Config: cfg, Log: log}
}

// ProcessPrompt runs the full pipeline for one raw prompt: classify,
// plan/filter, run the retrieve and store loops concurrently, apply the
// safety nets, assemble and curate the retrieved set, and reconcile any
// newly stored instructions. Never returns an error; failures degrade to
// partial or empty results, logged but swallowed.
func (p *Pipeline) ProcessPrompt(ctx context.Context, prompt string) (string, *trace.Trace) {
	tr := trace.New(prompt)
	if strings.TrimSpace(prompt) == "" {
		return "", tr
	}
	if p.Usage != nil {
		p.Usage.Reset()
	}

	classifier := classify.New(p.Chat, p.Config.Layer1Model, p.Log)
	result, err := classifier.Classify(ctx, prompt)
	if err != nil {
		p.Log.Warn().Err(err).Msg("pipeline: classify failed")
	}
	tr.Classification = result

	if result.IsEmpty() && !result.Operations.Retrieve && !result.Operations.Store {
		p.Log.Debug().Msg("pipeline: trivial input, skipping")
		return "", tr
	}

	planner := plan.NewWithArchetypes(p.Chat, p.Config.Layer1Model, p.Log, p.Config.Archetypes)
	planOut := planner.Run(ctx, prompt, tools.RetrieveToolDefs())
	tr.Plan = planOut

	timeout := time.Duration(p.Config.Layer2TimeoutMS) * time.Millisecond

	retrieveDisp := tools.New(p.Store, p.Index, p.Embed, p.Log)
	storeDisp := tools.New(p.Store, p.Index, p.Embed, p.Log)

	storeItems := planOut.Filter.Items
	if !result.Operations.Store {
		storeItems = nil
	}

	var retrieveResult retrieve.Result
	var storeResult storeloop.Result

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if !result.Operations.Retrieve {
			return
		}
		retrieveResult = retrieve.Run(ctx, p.Chat, retrieveDisp, p.Config.Layer2Model, prompt, planOut.SearchPlan, p.Config.MaxLayer2Turns, timeout, p.Log)
	}()
	go func() {
		defer wg.Done()
		storeResult = storeloop.Run(ctx, p.Chat, storeDisp, p.Config.Layer2Model, storeItems, p.Config.MaxLayer2Turns, timeout, p.Log)
	}()
	wg.Wait()

	tr.RetrieveTurns = retrieveResult.Turns
	tr.StoreTurns = storeResult.Turns
	tr.ForceStored = storeResult.ForceStored

	netResults := safetynet.Run(ctx, p.Store, p.Index, p.Embed, prompt, p.Log)
	tr.SafetyNets = netResults.Notes

	hits := make([]assemble.Hit, 0)
	for _, h := range retrieveDisp.SeenHits() {
		hits = append(hits, assemble.Hit{NodeID: h.NodeID, Score: h.Score})
	}
	for _, h := range storeDisp.SeenHits() {
		hits = append(hits, assemble.Hit{NodeID: h.NodeID, Score: h.Score})
	}
	for _, h := range netResults.InstructionPreFetch {
		hits = append(hits, assemble.Hit{NodeID: h.NodeID, Score: h.Score})
	}
	for _, h := range netResults.BroadFallback {
		hits = append(hits, assemble.Hit{NodeID: h.NodeID, Score: h.Score})
	}
	for _, h := range netResults.GlobalInstructions {
		hits = append(hits, assemble.Hit{NodeID: h.NodeID, Score: h.Score})
	}
	if retrieveResult.Supplementary != "" {
		p.Log.Debug().Msg("pipeline: retrieve loop produced supplementary text")
	}

	assembled := assemble.Assemble(p.Store, hits, p.Log)

	newInstructionIDs := newInstructionIDs(storeResult, p.Store, p.Log)
	flags := reconcile.Run(ctx, p.Store, p.Index, p.Chat, p.Embed, p.Config.Layer1Model, newInstructionIDs, p.Log)
	tr.ReconcileFlags = flags

	contextBlock := curate.Run(ctx, p.Chat, p.Config.Layer1Model, prompt, assembled, p.Log)
	if p.Usage != nil {
		tr.Usage = p.Usage.Snapshot()
	}
	return contextBlock, tr
}

// newInstructionIDs extracts the ids of force-stored and tool-stored
// instruction nodes from this turn's store results.
func newInstructionIDs(res storeloop.Result, s *store.SQLiteStore, log zerolog.Logger) []string {
	var ids []string
	for _, line := range res.ForceStored {
		id := extractStoredID(line)
		if id == "" {
			continue
		}
		n, err := s.GetNode(id)
		if err != nil || n == nil || n.NodeType != store.NodeInstruction {
			continue
		}
		ids = append(ids, id)
	}
	for _, turn := range res.Turns {
		if turn.ToolCall != "store_memory" || turn.Error != "" {
			continue
		}
		id := extractStoredID(turn.Result)
		if id == "" {
			continue
		}
		n, err := s.GetNode(id)
		if err != nil || n == nil || n.NodeType != store.NodeInstruction {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// extractStoredID pulls the node id out of store_memory's/force-store's
// "stored <type> node <id>: <content>" result line.
func extractStoredID(line string) string {
	const marker = " node "
	pos := strings.Index(line, marker)
	if pos < 0 {
		return ""
	}
	rest := line[pos+len(marker):]
	if idx := strings.Index(rest, ":"); idx >= 0 {
		return rest[:idx]
	}
	return ""
}
