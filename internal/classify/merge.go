package classify

import "strings"

// Merge combines per-sentence results: entities
// deduplicated by lowercased name, string arrays concatenated, concepts and
// intents set-unioned, operations OR-ed.
func Merge(results []Result) Result {
	var out Result
	seenEntities := make(map[string]bool)
	seenConcepts := make(map[string]bool)
	seenIntents := make(map[Intent]bool)

	for _, r := range results {
		for _, e := range r.Entities {
			key := strings.ToLower(strings.TrimSpace(e.Name))
			if key == "" || seenEntities[key] {
				continue
			}
			seenEntities[key] = true
			out.Entities = append(out.Entities, e)
		}
		out.ImpliedFacts = append(out.ImpliedFacts, r.ImpliedFacts...)
		out.Events = append(out.Events, r.Events...)
		out.Plans = append(out.Plans, r.Plans...)
		out.Opinions = append(out.Opinions, r.Opinions...)
		out.ImpliedProcesses = append(out.ImpliedProcesses, r.ImpliedProcesses...)

		for _, c := range r.Concepts {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" || seenConcepts[key] {
				continue
			}
			seenConcepts[key] = true
			out.Concepts = append(out.Concepts, c)
		}
		for _, in := range r.Intents {
			if seenIntents[in] {
				continue
			}
			seenIntents[in] = true
			out.Intents = append(out.Intents, in)
		}
		out.Operations.Retrieve = out.Operations.Retrieve || r.Operations.Retrieve
		out.Operations.Store = out.Operations.Store || r.Operations.Store
	}
	return out
}
