// Package curate runs the per-section verbatim-copy pass that turns the
// assembler's sectioned nodes into the final context block.
package curate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/gomemory/internal/assemble"
	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
)

// NoRelevantRecords is the literal sentinel a curation call returns when
// nothing in its section helps answer the prompt. Seeing it drops the
// section entirely.
const NoRelevantRecords = "NO_RELEVANT_RECORDS"

const systemPrompt = `You copy memory records verbatim. You are given a prompt and a numbered
list of candidate records. Output only the records that help answer the prompt,
each on its own line, with exact names, numbers, prices, and dates preserved
character-for-character. Do not summarize, rephrase, or reorder words within a
kept record. Omit records that do not help. If none help, output exactly:
NO_RELEVANT_RECORDS`

// Chat is the minimal gateway capability the curator needs.
type Chat interface {
	Call(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

type section struct {
	header string
	records []string
}

// Run builds one candidate record list per non-empty section, fans a
// verbatim-copy call out to each in parallel, and joins the surviving
// sections into the final context block. Returns "" if nothing survives.
func Run(ctx context.Context, chat Chat, model, prompt string, assembled assemble.Assembled, log zerolog.Logger) string {
	sections := buildSections(assembled)

	curated := make([]string, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	for i, sec := range sections {
		i, sec := i, sec
		g.Go(func() error {
			curated[i] = curateSection(gctx, chat, model, prompt, sec, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("curate: section fan-out cancelled")
	}

	var blocks []string
	for i, sec := range sections {
		body := strings.TrimSpace(curated[i])
		if body == "" || body == NoRelevantRecords {
			continue
		}
		blocks = append(blocks, sec.header+"\n"+body)
	}
	return strings.Join(blocks, "\n\n")
}

func curateSection(ctx context.Context, chat Chat, model, prompt string, sec section, log zerolog.Logger) string {
	if len(sec.records) == 0 {
		return ""
	}
	req := gateway.ChatRequest{
		Model: model,
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: systemPrompt},
			{Role: gateway.RoleUser, Content: buildCurationPrompt(prompt, sec.records)},
		},
		Tag: gateway.TagCurate,
	}
	resp, err := chat.Call(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("section", sec.header).Msg("curate: section call failed")
		return NoRelevantRecords
	}
	return resp.Content
}

func buildCurationPrompt(prompt string, records []string) string {
	var sb strings.Builder
	sb.WriteString("PROMPT:\n" + prompt + "\n\nCANDIDATE RECORDS:\n")
	for i, r := range records {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, r))
	}
	return sb.String()
}

// buildSections renders the assembler's output into the five fixed
// sections in the order the return format requires, skipping empty ones.
func buildSections(a assemble.Assembled) []section {
	var out []section
	if recs := entityRecords(a.Entities); len(recs) > 0 {
		out = append(out, section{header: "People & things:", records: recs})
	}
	if recs := nodeRecords(a.Instructions); len(recs) > 0 {
		out = append(out, section{header: "Instructions:", records: recs})
	}
	if recs := nodeRecords(a.Facts); len(recs) > 0 {
		out = append(out, section{header: "Facts:", records: recs})
	}
	if recs := nodeRecords(a.Events); len(recs) > 0 {
		out = append(out, section{header: "Events:", records: recs})
	}
	if recs := nodeRecords(a.Plans); len(recs) > 0 {
		out = append(out, section{header: "Plans:", records: recs})
	}
	return out
}

func nodeRecords(nodes []store.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Content
	}
	return out
}

// entityRecords renders an entity's content plus its capped, salience-ordered
// relationships as a single candidate record so the curator can keep or drop
// the pair together.
func entityRecords(items []assemble.EntityItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		rec := it.Node.Content
		if len(it.Relationships) > 0 {
			var rels []string
			for _, r := range it.Relationships {
				rels = append(rels, fmt.Sprintf("%s %s", r.Edge.EdgeType, r.Other.Content))
			}
			rec = rec + " (" + strings.Join(rels, "; ") + ")"
		}
		out = append(out, rec)
	}
	return out
}
