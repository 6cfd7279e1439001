package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// DoneRetrieve carries the termination signal's arguments for the retrieve
// loop; the loop itself inspects the tool name, this is only parsed for
// completeness/logging.
type DoneRetrieve struct{}

// DoneStore carries the store loop's termination argument.
type DoneStore struct {
	StoredCount int `json:"stored_count"`
}

// IsDone reports whether name is the termination tool.
func IsDone(name string) bool { return name == "done" }

// DispatchRetrieve routes a retrieve-set tool call to its implementation.
// "done" is handled by the caller (the retrieve loop), not here.
func (d *Dispatcher) DispatchRetrieve(ctx context.Context, name string, argsJSON json.RawMessage) (string, error) {
	switch name {
	case "search_entity":
		return d.SearchEntity(ctx, argsJSON)
	case "get_relationships":
		return d.GetRelationships(ctx, argsJSON)
	case "search_facts":
		return d.SearchFacts(ctx, argsJSON)
	case "search_events":
		return d.SearchEvents(ctx, argsJSON)
	case "search_plans":
		return d.SearchPlans(ctx, argsJSON)
	case "search_processes":
		return d.SearchProcesses(ctx, argsJSON)
	case "get_instructions":
		return d.GetInstructions(ctx, argsJSON)
	case "done":
		return "", nil
	default:
		return "", fmt.Errorf("unknown retrieve tool %q", name)
	}
}

// DispatchStore routes a store-set tool call to its implementation. "done"
// is handled by the caller (the store loop), not here.
func (d *Dispatcher) DispatchStore(ctx context.Context, name string, argsJSON json.RawMessage) (string, error) {
	switch name {
	case "search_entity":
		return d.SearchEntity(ctx, argsJSON)
	case "search_facts":
		return d.SearchFacts(ctx, argsJSON)
	case "store_memory":
		return d.StoreMemory(ctx, argsJSON)
	case "supersede_memory":
		return d.SupersedeMemory(ctx, argsJSON)
	case "done":
		return "", nil
	default:
		return "", fmt.Errorf("unknown store tool %q", name)
	}
}
