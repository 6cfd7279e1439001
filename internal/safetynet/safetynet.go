// Package safetynet implements the three deterministic, non-LLM retrieval
// passes that run after the two agent loops join.
package safetynet

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/textnorm"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

// Embedder is the minimal gateway capability the safety nets need.
type Embedder interface {
	Call(ctx context.Context, texts []string, kind gateway.EmbedKind, tag gateway.ChatTag) ([][]float32, error)
}

// Hit pairs a node id with the score that surfaced it, letting the
// assembler keep scores structured instead of parsing them back out of
// text
type Hit struct {
	NodeID string
	Score float64
}

// Results bundles all three safety-net passes' output node ids.
type Results struct {
	InstructionPreFetch []Hit
	BroadFallback []Hit
	GlobalInstructions []Hit
	Notes []string // human-readable log of what each net did, for trace.Trace.SafetyNets
}

const globalInstructionScoreFloor = 0.6
const globalInstructionCosineMin = 0.15

// Run executes all three safety nets against prompt.
func Run(ctx context.Context, s *store.SQLiteStore, idx *vectorindex.Index, embed Embedder, prompt string, log zerolog.Logger) Results {
	var res Results

	vecs, err := embed.Call(ctx, []string{prompt}, gateway.EmbedQuery, gateway.TagL2)
	if err != nil || len(vecs) == 0 {
		log.Warn().Err(err).Msg("safetynet: failed to embed prompt")
		return res
	}
	query := vecs[0]

	res.InstructionPreFetch = instructionPreFetch(s, idx, query)
	res.Notes = append(res.Notes, fmt.Sprintf("instruction pre-fetch surfaced %d node(s)", len(res.InstructionPreFetch)))

	res.BroadFallback = broadFallback(idx, query)
	res.Notes = append(res.Notes, fmt.Sprintf("broad embedding fallback surfaced %d node(s)", len(res.BroadFallback)))

	res.GlobalInstructions = globalInstructions(s, idx, query)
	res.Notes = append(res.Notes, fmt.Sprintf("global instruction auto-inject surfaced %d node(s)", len(res.GlobalInstructions)))

	return res
}

// instructionPreFetch embeds the prompt, searches instruction nodes at
// top_k = 10x the desired 15, deduplicates by normalized content, and keeps
// the top 15
func instructionPreFetch(s *store.SQLiteStore, idx *vectorindex.Index, query []float32) []Hit {
	const desired = 15
	results, err := idx.Search(query, desired*10, store.SearchFilter{NodeTypes: []store.NodeType{store.NodeInstruction}})
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []Hit
	for _, r := range results {
		n, err := s.GetNode(r.NodeID)
		if err != nil || n == nil || n.SupersededBy != "" {
			continue
		}
		key := dedupKey(n.Content)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Hit{NodeID: r.NodeID, Score: r.Score})
		if len(out) >= desired {
			break
		}
	}
	return out
}

// dedupKey is the normalization chosen for the open question
// on "entity-name canonicalisation": lowercase, collapse whitespace, strip
// the same trailing qualifier list findEntitiesByName uses.
func dedupKey(content string) string {
	return textnorm.EntityKey(content)
}

// broadFallback is an unrestricted cosine search to catch items the agent
// missed
func broadFallback(idx *vectorindex.Index, query []float32) []Hit {
	results, err := idx.Search(query, 20, store.SearchFilter{})
	if err != nil {
		return nil
	}
	out := make([]Hit, 0, len(results))
	for _, r := range results {
		out = append(out, Hit{NodeID: r.NodeID, Score: r.Score})
	}
	return out
}

// globalInstructions fetches scope>=0.8 instructions, filters to
// cosine>0.15 against the prompt, and applies a 0.6 score floor so they
// survive ranking against bulk noise
func globalInstructions(s *store.SQLiteStore, idx *vectorindex.Index, query []float32) []Hit {
	nodes, err := s.GetGlobalInstructions(20)
	if err != nil {
		return nil
	}
	var out []Hit
	for _, n := range nodes {
		combined := searchScore(idx, query, n.ID)
		cos := combined
		if n.Salience != 0 {
			cos = combined / n.Salience
		}
		if cos <= globalInstructionCosineMin {
			continue
		}
		score := combined
		if score < globalInstructionScoreFloor {
			score = globalInstructionScoreFloor
		}
		out = append(out, Hit{NodeID: n.ID, Score: score})
	}
	return out
}

// searchScore restricts the index to a single node id and returns the
// cosine*salience score the vector index already computes (the index has
// no separate raw-cosine primitive; callers that need cosine alone divide
// back out by the node's salience).
func searchScore(idx *vectorindex.Index, query []float32, nodeID string) float64 {
	results, err := idx.Search(query, 1, store.SearchFilter{NodeIDs: []string{nodeID}})
	if err != nil || len(results) == 0 {
		return 0
	}
	return results[0].Score
}
