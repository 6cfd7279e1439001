// Package classify implements the first-stage classifier: a single-model call that
// parses a prompt into a typed extraction record, with
// multi-sentence merging and a rule-based fallback.
package classify

// Intent is one of the closed set of recognized prompt intents.
type Intent string

const (
	IntentAction Intent = "action"
	IntentInformation Intent = "information"
	IntentStatus Intent = "status"
	IntentProcess Intent = "process"
	IntentRecall Intent = "recall"
	IntentComparison Intent = "comparison"
	IntentVerification Intent = "verification"
	IntentInstruction Intent = "instruction"
	IntentCorrection Intent = "correction"
	IntentOpinion Intent = "opinion"
	IntentPlanning Intent = "planning"
	IntentDelegation Intent = "delegation"
)

// AllIntents lists every recognized intent, for prompt construction.
var AllIntents = []Intent{
	IntentAction, IntentInformation, IntentStatus, IntentProcess, IntentRecall,
	IntentComparison, IntentVerification, IntentInstruction, IntentCorrection,
	IntentOpinion, IntentPlanning, IntentDelegation,
}

// retrieveIntents is the set that forces operations.Retrieve=true.
var retrieveIntents = map[Intent]bool{
	IntentAction: true, IntentInformation: true, IntentStatus: true,
	IntentProcess: true, IntentRecall: true, IntentComparison: true,
	IntentVerification: true, IntentOpinion: true, IntentPlanning: true,
	IntentDelegation: true,
}

// Entity is an entity mention extracted from the prompt.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Ambiguous bool `json:"ambiguous"`
}

// Operations records which downstream loops the prompt should trigger.
type Operations struct {
	Retrieve bool `json:"retrieve"`
	Store bool `json:"store"`
}

// Result is the classifier's typed extraction record
type Result struct {
	Entities []Entity `json:"entities"`
	ImpliedFacts []string `json:"implied_facts"`
	Events []string `json:"events"`
	Plans []string `json:"plans"`
	Opinions []string `json:"opinions"`
	Concepts []string `json:"concepts"`
	ImpliedProcesses []string `json:"implied_processes"`
	Intents []Intent `json:"intents"`
	Operations Operations `json:"operations"`
}

// IsEmpty reports whether the result carries no extracted content at all
// (the "trivial input skip" scenario).
func (r Result) IsEmpty() bool {
	return len(r.Entities) == 0 && len(r.ImpliedFacts) == 0 && len(r.Events) == 0 &&
		len(r.Plans) == 0 && len(r.Opinions) == 0 && len(r.Concepts) == 0 &&
		len(r.ImpliedProcesses) == 0
}

// deriveOperations re-enforces the derivation rules after
// parsing, independent of whatever the model asserted for Operations.
func deriveOperations(r *Result, prompt string, mentionsEntityOrQuestion bool) {
	retrieve := mentionsEntityOrQuestion
	store := false
	for _, in := range r.Intents {
		if retrieveIntents[in] {
			retrieve = true
		}
		if in == IntentInstruction || in == IntentCorrection {
			store = true
		}
		if in == IntentCorrection {
			retrieve = true
		}
	}
	if len(r.ImpliedFacts) > 0 || len(r.Plans) > 0 {
		store = true
	}
	r.Operations = Operations{Retrieve: retrieve, Store: store}
}
