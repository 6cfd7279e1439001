// Package reconcile judges newly stored instructions against topically
// overlapping existing ones, superseding or flagging contradictions so at
// most one version of an instruction stays live.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/trace"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

const candidateCount = 5

const systemPrompt = `You judge whether a newly stored instruction conflicts with an existing
one. Reply with exactly one word: NO_CONFLICT if they cover different topics or
are compatible; SUPERSEDES if the new instruction clearly replaces the old one
(phrasings like "taking over from", "instead of", "now handles"); CONTRADICTION
if they cover the same topic with conflicting rules and neither text says the
new one replaces the old.`

// Chat is the minimal gateway capability the reconciler needs.
type Chat interface {
	Call(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

// Embedder is the minimal gateway capability the reconciler needs for
// candidate selection and re-embedding on supersede.
type Embedder interface {
	Call(ctx context.Context, texts []string, kind gateway.EmbedKind, tag gateway.ChatTag) ([][]float32, error)
}

// Run reconciles each newly stored instruction id against existing live
// instructions, superseding or flagging contradictions as the model
// decides, and returns a trace entry per judged pair.
func Run(ctx context.Context, s *store.SQLiteStore, idx *vectorindex.Index, chat Chat, embed Embedder, model string, newIDs []string, log zerolog.Logger) []trace.ReconcileFlag {
	var flags []trace.ReconcileFlag
	for _, newID := range newIDs {
		flags = append(flags, reconcileOne(ctx, s, idx, chat, embed, model, newID, log)...)
	}
	return flags
}

func reconcileOne(ctx context.Context, s *store.SQLiteStore, idx *vectorindex.Index, chat Chat, embed Embedder, model, newID string, log zerolog.Logger) []trace.ReconcileFlag {
	newNode, err := s.GetNode(newID)
	if err != nil || newNode == nil || newNode.NodeType != store.NodeInstruction {
		return nil
	}

	vecs, err := embed.Call(ctx, []string{newNode.Content}, gateway.EmbedQuery, gateway.TagReconcile)
	if err != nil || len(vecs) == 0 {
		log.Warn().Err(err).Str("node_id", newID).Msg("reconcile: failed to embed new instruction")
		return nil
	}

	results, err := idx.Search(vecs[0], candidateCount+1, store.SearchFilter{NodeTypes: []store.NodeType{store.NodeInstruction}})
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: candidate search failed")
		return nil
	}

	var flags []trace.ReconcileFlag
	checked := 0
	for _, r := range results {
		if r.NodeID == newID {
			continue
		}
		if checked >= candidateCount {
			break
		}
		checked++

		old, err := s.GetNode(r.NodeID)
		if err != nil || old == nil || old.SupersededBy != "" {
			continue
		}

		verdict := judge(ctx, chat, model, old.Content, newNode.Content, log)
		switch verdict {
		case "SUPERSEDES":
			supersededID, err := s.SupersedeNode(old.ID, newNode.Content, uuid.NewString())
			if err != nil {
				log.Warn().Err(err).Msg("reconcile: supersede failed")
				continue
			}
			vector, err := embedOneDocument(ctx, embed, newNode.Content)
			if err == nil {
				_ = s.PutEmbedding(supersededID, old.NodeType, vector)
			}
			flags = append(flags, trace.ReconcileFlag{NewID: newID, OldID: old.ID, Verdict: verdict, Detail: "superseded " + old.ID})
		case "CONTRADICTION":
			flags = append(flags, trace.ReconcileFlag{NewID: newID, OldID: old.ID, Verdict: verdict, Detail: "flagged for user review"})
		default:
			flags = append(flags, trace.ReconcileFlag{NewID: newID, OldID: old.ID, Verdict: "NO_CONFLICT"})
		}
	}
	return flags
}

func embedOneDocument(ctx context.Context, embed Embedder, text string) ([]float32, error) {
	vecs, err := embed.Call(ctx, []string{text}, gateway.EmbedDocument, gateway.TagReconcile)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed returned no vectors")
	}
	return vecs[0], nil
}

func judge(ctx context.Context, chat Chat, model, oldContent, newContent string, log zerolog.Logger) string {
	req := gateway.ChatRequest{
		Model: model,
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: systemPrompt},
			{Role: gateway.RoleUser, Content: fmt.Sprintf("EXISTING INSTRUCTION:\n%s\n\nNEW INSTRUCTION:\n%s", oldContent, newContent)},
		},
		Tag: gateway.TagReconcile,
	}
	resp, err := chat.Call(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: judge call failed")
		return "NO_CONFLICT"
	}
	verdict := strings.ToUpper(strings.TrimSpace(resp.Content))
	switch {
	case strings.Contains(verdict, "SUPERSEDES"):
		return "SUPERSEDES"
	case strings.Contains(verdict, "CONTRADICTION"):
		return "CONTRADICTION"
	default:
		return "NO_CONFLICT"
	}
}
