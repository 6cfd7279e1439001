package classify

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// stripCodeFence removes a markdown code-fence wrapper around a JSON
// response.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

var validIntentSet = func() map[Intent]bool {
	m := make(map[Intent]bool, len(AllIntents))
	for _, in := range AllIntents {
		m[in] = true
	}
	return m
}()

// ParseResponse parses a single model response into a Result, filtering
// intents down to the closed set.
func ParseResponse(raw string) (*Result, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, fmt.Errorf("classify: empty response")
	}
	var r Result
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("classify: parse failed: %w", err)
	}

	filtered := r.Intents[:0]
	for _, in := range r.Intents {
		if validIntentSet[in] {
			filtered = append(filtered, in)
		}
	}
	r.Intents = filtered
	return &r, nil
}

// RuleBasedFallback extracts capitalized non-sentence-starter words as
// ambiguous concept-typed entities when both parse attempts fail.
func RuleBasedFallback(sentence string) Result {
	words := strings.Fields(sentence)
	var entities []Entity
	for i, w := range words {
		trimmed := strings.Trim(w, ".,!?;:\"'")
		if trimmed == "" {
			continue
		}
		runes := []rune(trimmed)
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		if i == 0 {
			continue // sentence-starter capitalization doesn't count
		}
		entities = append(entities, Entity{Name: trimmed, Type: "concept", Ambiguous: true})
	}
	return Result{
		Entities: entities,
		Intents: []Intent{IntentInformation},
		Operations: Operations{Retrieve: true, Store: false},
	}
}
