package plan

import (
	"fmt"
	"strings"

	"github.com/kittclouds/gomemory/internal/gateway"
)

const retrievalSystemPrompt = `You are a retrieval planner for a personal memory system.
Given a user prompt, produce a short reasoning chain and a 1-5 step search plan
over the available retrieval tools. Output free text (not JSON): first your
reasoning, then a numbered list of steps naming which tool to call and why.`

// BuildRetrievalPrompt constructs planRetrieval's user prompt, listing the
// retrieve-set tools available to the retrieve loop.
func BuildRetrievalPrompt(prompt string, tools []gateway.ToolDefinition) string {
	var sb strings.Builder
	sb.WriteString("USER PROMPT:\n")
	sb.WriteString(prompt)
	sb.WriteString("\n\nAVAILABLE TOOLS:\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}
	sb.WriteString("\nProduce your reasoning and search plan now.")
	return sb.String()
}

const filterSystemPrompt = `You are a storage-intent filter for a personal memory system.
The distinguishing test: is the user telling you something new, or asking about
something they expect you to already know? Questions, hypotheticals, greetings,
common sense, and vague statements should yield an empty items list with a
skip_reason. Return ONLY a valid JSON object: {"items": [...], "skip_reason": string}.
No markdown, no explanation.`

// BuildFilterPrompt constructs filterForStorage's user prompt, including the
// recognized instruction archetypes as recognition guidance. Pass nil for
// archetypes to fall back to the built-in eight-archetype table.
func BuildFilterPrompt(prompt string, archetypes []Archetype) string {
	if archetypes == nil {
		archetypes = InstructionArchetypes
	}
	var sb strings.Builder
	sb.WriteString("USER PROMPT:\n")
	sb.WriteString(prompt)
	sb.WriteString("\n\nEach item: {\"content\": string, \"type\": one of " +
		"[fact, event, opinion, instruction, plan], \"subtype\": optional, " +
		"\"reason\": optional, \"valid_from\": optional (required for plan items), " +
		"\"scope\": optional 0-1, \"salience\": optional}.\n\n")
	sb.WriteString("INSTRUCTION ARCHETYPES (assign scope accordingly):\n")
	for _, a := range archetypes {
		sb.WriteString(fmt.Sprintf("- %s (scope %.1f): %s\n", a.Name, a.Scope, a.Description))
	}
	sb.WriteString("\nIf nothing qualifies, return {\"items\": [], \"skip_reason\": \"...\"}.")
	return sb.String()
}
