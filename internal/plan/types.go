// Package plan implements the planner/filter stage: two independent model
// calls producing a search plan (planRetrieval) and a storage-intent record
// (filterForStorage).
package plan

// StoreItem is a typed candidate for storage
type StoreItem struct {
	Content string `json:"content"`
	Type string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Reason string `json:"reason,omitempty"`
	ValidFrom string `json:"valid_from,omitempty"`
	Scope *float64 `json:"scope,omitempty"`
	Salience *float64 `json:"salience,omitempty"`
}

// FilterResult is filterForStorage's output: either a list of StoreItems,
// or an empty list with a reason the prompt was skipped.
type FilterResult struct {
	Items []StoreItem `json:"items"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Archetype is one of the eight instruction archetypes recognized by
// filterForStorage, each carrying the scope it should be assigned.
type Archetype struct {
	Name string `yaml:"name"`
	Description string `yaml:"description"`
	Scope float64 `yaml:"scope"`
}

// InstructionArchetypes enumerates the eight recognized instruction
// archetypes, baked as a table rather than scattered string literals through
// the prompt builder.
var InstructionArchetypes = []Archetype{
	{Name: "process_procedure", Description: "a repeatable process or procedure to follow", Scope: 0.5},
	{Name: "tool_usage", Description: "how to use a specific tool", Scope: 0.5},
	{Name: "role_assignment", Description: "who is responsible for what", Scope: 0.5},
	{Name: "threshold_constraint", Description: "a numeric or categorical threshold/constraint", Scope: 0.5},
	{Name: "exception_override", Description: "an exception to or override of a general rule", Scope: 0.2},
	{Name: "preference_as_rule", Description: "a stated preference elevated to a rule", Scope: 0.2},
	{Name: "correction_to_rule", Description: "a correction to a previously stated rule", Scope: 0.5},
	{Name: "ban", Description: "an outright prohibition", Scope: 1.0},
}
