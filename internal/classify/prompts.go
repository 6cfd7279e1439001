package classify

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the model to return strict JSON matching Result's
// shape
const SystemPrompt = `You are a classification engine for a personal memory system.
Given one sentence (with the full original prompt for pronoun-resolution context),
extract structured knowledge as a single JSON object. Return ONLY valid JSON, no
markdown, no explanation. Start with { and end with }.`

var intentNames = func() []string {
	out := make([]string, len(AllIntents))
	for i, in := range AllIntents {
		out[i] = string(in)
	}
	return out
}()

// BuildUserPrompt constructs the per-sentence classification prompt. The
// full prompt is included for pronoun resolution even when classifying a
// single sentence out of several
func BuildUserPrompt(sentence, fullPrompt string) string {
	var sb strings.Builder
	sb.WriteString("FULL PROMPT (context for pronoun resolution):\n")
	sb.WriteString(fullPrompt)
	sb.WriteString("\n\nSENTENCE TO CLASSIFY:\n")
	sb.WriteString(sentence)
	sb.WriteString("\n\nReturn a JSON object shaped exactly as:\n")
	sb.WriteString(`{
 "entities": [{"name": string, "type": string, "ambiguous": bool}],
 "implied_facts": [string], "events": [string], "plans": [string],
 "opinions": [string], "concepts": [string], "implied_processes": [string],
 "intents": [string], "operations": {"retrieve": bool, "store": bool}
}`)
	sb.WriteString(fmt.Sprintf("\n\nintents must be drawn only from: %s\n", strings.Join(intentNames, ", ")))
	sb.WriteString("Derivation rules:\n")
	sb.WriteString("- retrieve=true for action/information/status/process/recall/comparison/verification/opinion/planning/delegation, and whenever the sentence mentions an entity or asks a question.\n")
	sb.WriteString("- store=true for instruction and correction intents; both retrieve and store are true for correction.\n")
	sb.WriteString("- store=true when the sentence states new factual content or a dated plan.\n")
	return sb.String()
}
