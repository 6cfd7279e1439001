package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
)

// RetrieveToolDefs lists the schemas offered to the retrieve loop (spec
// section 4.4's retrieve-set).
func RetrieveToolDefs() []gateway.ToolDefinition {
	return []gateway.ToolDefinition{
		{
			Name: "search_entity",
			Description: "Search for an entity (person, org, project, etc.) by name and return its facts and relationships.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{"name": {Type: "string", Description: "entity name to search for"}},
				Required: []string{"name"},
			},
		},
		{
			Name: "get_relationships",
			Description: "Get up to 25 relationships for an entity by id.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{"entity_id": {Type: "string"}},
				Required: []string{"entity_id"},
			},
		},
		{
			Name: "search_facts",
			Description: "Search facts and opinions relevant to a query, optionally restricted to one entity.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{
					"query": {Type: "string"},
					"entity_id": {Type: "string", Description: "optional, restrict to this entity's linked facts"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name: "search_events",
			Description: "Search events and plans relevant to a query, optionally restricted to one entity and/or a recent window in days.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{
					"query": {Type: "string"},
					"entity_id": {Type: "string"},
					"days": {Type: "integer"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name: "search_plans",
			Description: "Search plan nodes relevant to a query, optionally restricted to one entity. Results are decorated with their scheduled date.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{
					"query": {Type: "string"},
					"entity_id": {Type: "string"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name: "search_processes",
			Description: "Search instruction/process nodes relevant to a query, optionally restricted to one entity.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{
					"query": {Type: "string"},
					"entity_id": {Type: "string"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name: "get_instructions",
			Description: "Get instructions, either entity-scoped (via entity_id) or topic-matched (stem-based, via topic).",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{
					"topic": {Type: "string"},
					"entity_id": {Type: "string"},
				},
			},
		},
		{
			Name: "done",
			Description: "Call this when you have gathered enough context to answer. Terminates the search loop.",
			Parameters: gateway.ToolParameterSchema{Type: "object"},
		},
	}
}

// SearchEntity embeds name as a query, cosine-searches entity nodes, and
// renders each hit as "[type/subtype] content (id, salience) [score]"
// followed by up to 15 relationships
func (d *Dispatcher) SearchEntity(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for search_entity: %w", err)
	}
	if strings.TrimSpace(args.Name) == "" {
		return "", fmt.Errorf("search_entity: name is required")
	}

	vector, err := d.embedOne(ctx, args.Name, gateway.EmbedQuery)
	if err != nil {
		return "", fmt.Errorf("search_entity: embed: %w", err)
	}
	results, err := d.Index.Search(vector, 10, store.SearchFilter{NodeTypes: []store.NodeType{store.NodeEntity}})
	if err != nil {
		return "", fmt.Errorf("search_entity: %w", err)
	}
	if len(results) == 0 {
		return "no matching entities found", nil
	}

	var lines []string
	for _, r := range dedupResults(results) {
		n, err := liveNode(d.Store, r.NodeID)
		if err != nil {
			return "", fmt.Errorf("search_entity: %w", err)
		}
		if n == nil {
			continue
		}
		d.rememberEntity(n.Content, n.ID)
		d.recordHit(n.ID, r.Score)
		lines = append(lines, formatNode(*n, r.Score))

		rels, err := d.Store.GetRelationships(n.ID)
		if err != nil {
			return "", fmt.Errorf("search_entity: relationships: %w", err)
		}
		const maxRels = 15
		for i, rel := range rels {
			if i >= maxRels {
				lines = append(lines, fmt.Sprintf(" ... %d more relationships omitted", len(rels)-maxRels))
				break
			}
			lines = append(lines, fmt.Sprintf(" → %s → %s (%s)", rel.Edge.EdgeType, rel.Other.Content, rel.Other.NodeType))
		}
	}
	if len(lines) == 0 {
		return "no matching entities found", nil
	}
	return Truncate(joinLines(lines)), nil
}

// GetRelationships returns up to 25 relationships for entity_id.
func (d *Dispatcher) GetRelationships(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		EntityID string `json:"entity_id"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for get_relationships: %w", err)
	}
	if args.EntityID == "" {
		return "", fmt.Errorf("get_relationships: entity_id is required")
	}
	rels, err := d.Store.GetRelationships(args.EntityID)
	if err != nil {
		return "", fmt.Errorf("get_relationships: %w", err)
	}
	if len(rels) == 0 {
		return "no relationships found", nil
	}
	const cap = 25
	var lines []string
	for i, rel := range rels {
		if i >= cap {
			break
		}
		lines = append(lines, fmt.Sprintf("→ %s → %s (%s)", rel.Edge.EdgeType, rel.Other.Content, rel.Other.NodeType))
	}
	return Truncate(joinLines(lines)), nil
}

// SearchFacts vector-searches {fact, opinion} nodes, restricted to an
// entity's linked facts when entity_id is given; top 10 after dedup.
func (d *Dispatcher) SearchFacts(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
		EntityID string `json:"entity_id"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for search_facts: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("search_facts: query is required")
	}

	vector, err := d.embedOne(ctx, args.Query, gateway.EmbedQuery)
	if err != nil {
		return "", fmt.Errorf("search_facts: embed: %w", err)
	}

	filter := store.SearchFilter{NodeTypes: []store.NodeType{store.NodeFact, store.NodeOpinion}}
	if args.EntityID != "" {
		linked, err := d.Store.GetFactsByEntity(args.EntityID)
		if err != nil {
			return "", fmt.Errorf("search_facts: %w", err)
		}
		if len(linked) == 0 {
			return "no matching facts found", nil
		}
		ids := make([]string, len(linked))
		for i, n := range linked {
			ids[i] = n.ID
		}
		filter.NodeIDs = ids
	}

	results, err := d.Index.Search(vector, 10, filter)
	if err != nil {
		return "", fmt.Errorf("search_facts: %w", err)
	}
	return d.renderScoredNodes(results, "no matching facts found")
}

// SearchEvents vector-searches {event, plan} nodes, optionally restricted
// by entity and/or the recent-window node set; top 20.
func (d *Dispatcher) SearchEvents(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
		EntityID string `json:"entity_id"`
		Days *int `json:"days"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for search_events: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("search_events: query is required")
	}

	vector, err := d.embedOne(ctx, args.Query, gateway.EmbedQuery)
	if err != nil {
		return "", fmt.Errorf("search_events: embed: %w", err)
	}

	filter := store.SearchFilter{NodeTypes: []store.NodeType{store.NodeEvent, store.NodePlan}}
	var allow map[string]bool
	if args.EntityID != "" {
		linked, err := d.Store.GetEventsByEntity(args.EntityID, args.Days)
		if err != nil {
			return "", fmt.Errorf("search_events: %w", err)
		}
		if len(linked) == 0 {
			return "no matching events found", nil
		}
		allow = map[string]bool{}
		for _, n := range linked {
			allow[n.ID] = true
		}
	} else if args.Days != nil {
		recent, err := d.Store.GetRecentEventIds(*args.Days)
		if err != nil {
			return "", fmt.Errorf("search_events: %w", err)
		}
		if len(recent) == 0 {
			return "no matching events found", nil
		}
		allow = map[string]bool{}
		for _, id := range recent {
			allow[id] = true
		}
	}
	if allow != nil {
		ids := make([]string, 0, len(allow))
		for id := range allow {
			ids = append(ids, id)
		}
		filter.NodeIDs = ids
	}

	results, err := d.Index.Search(vector, 20, filter)
	if err != nil {
		return "", fmt.Errorf("search_events: %w", err)
	}
	return d.renderScoredNodes(results, "no matching events found")
}

// SearchPlans vector-searches plan nodes, decorating each with its
// scheduled date.
func (d *Dispatcher) SearchPlans(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
		EntityID string `json:"entity_id"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for search_plans: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("search_plans: query is required")
	}

	vector, err := d.embedOne(ctx, args.Query, gateway.EmbedQuery)
	if err != nil {
		return "", fmt.Errorf("search_plans: embed: %w", err)
	}

	filter := store.SearchFilter{NodeTypes: []store.NodeType{store.NodePlan}}
	if args.EntityID != "" {
		linked, err := d.Store.GetPlansByEntity(args.EntityID)
		if err != nil {
			return "", fmt.Errorf("search_plans: %w", err)
		}
		if len(linked) == 0 {
			return "no matching plans found", nil
		}
		ids := make([]string, len(linked))
		for i, n := range linked {
			ids[i] = n.ID
		}
		filter.NodeIDs = ids
	}

	results, err := d.Index.Search(vector, 10, filter)
	if err != nil {
		return "", fmt.Errorf("search_plans: %w", err)
	}
	results = dedupResults(results)
	if len(results) == 0 {
		return "no matching plans found", nil
	}

	var lines []string
	for _, r := range results {
		n, err := liveNode(d.Store, r.NodeID)
		if err != nil {
			return "", fmt.Errorf("search_plans: %w", err)
		}
		if n == nil {
			continue
		}
		d.recordHit(n.ID, r.Score)
		scheduled := "unscheduled"
		if n.ValidFrom != nil {
			scheduled = time.UnixMilli(*n.ValidFrom).UTC().Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf("%s [scheduled: %s]", formatNode(*n, r.Score), scheduled))
	}
	if len(lines) == 0 {
		return "no matching plans found", nil
	}
	return Truncate(joinLines(lines)), nil
}

// SearchProcesses vector-searches instruction nodes; top 10.
func (d *Dispatcher) SearchProcesses(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
		EntityID string `json:"entity_id"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for search_processes: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("search_processes: query is required")
	}

	vector, err := d.embedOne(ctx, args.Query, gateway.EmbedQuery)
	if err != nil {
		return "", fmt.Errorf("search_processes: embed: %w", err)
	}

	filter := store.SearchFilter{NodeTypes: []store.NodeType{store.NodeInstruction}}
	if args.EntityID != "" {
		linked, err := d.Store.GetInstructionsByEntity(args.EntityID)
		if err != nil {
			return "", fmt.Errorf("search_processes: %w", err)
		}
		if len(linked) == 0 {
			return "no matching processes found", nil
		}
		ids := make([]string, len(linked))
		for i, n := range linked {
			ids[i] = n.ID
		}
		filter.NodeIDs = ids
	}

	results, err := d.Index.Search(vector, 10, filter)
	if err != nil {
		return "", fmt.Errorf("search_processes: %w", err)
	}
	return d.renderScoredNodes(results, "no matching processes found")
}

// GetInstructions resolves entity-scoped instructions via edges when
// entity_id is given, otherwise falls back to stem-based topic match.
func (d *Dispatcher) GetInstructions(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		Topic string `json:"topic"`
		EntityID string `json:"entity_id"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for get_instructions: %w", err)
	}

	var nodes []store.Node
	var err error
	if args.EntityID != "" {
		nodes, err = d.Store.GetInstructionsByEntity(args.EntityID)
	} else {
		nodes, err = d.Store.GetInstructions(args.Topic)
	}
	if err != nil {
		return "", fmt.Errorf("get_instructions: %w", err)
	}
	if len(nodes) == 0 {
		return "no instructions found", nil
	}
	var lines []string
	for _, n := range nodes {
		d.recordHit(n.ID, 0)
		lines = append(lines, formatNode(n, 0))
	}
	return Truncate(joinLines(lines)), nil
}

