package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
)

// StoreToolDefs lists the schemas offered to the store loop: search_entity
// and search_facts plus the mutating tools.
func StoreToolDefs() []gateway.ToolDefinition {
	retrieveDefs := RetrieveToolDefs()
	shared := make([]gateway.ToolDefinition, 0, 2)
	for _, d := range retrieveDefs {
		if d.Name == "search_entity" || d.Name == "search_facts" {
			shared = append(shared, d)
		}
	}

	return append(shared,
		gateway.ToolDefinition{
			Name: "store_memory",
			Description: "Create a new memory node (fact, event, opinion, instruction, or plan) and link it to the given entities.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{
					"type": {Type: "string", Enum: []string{"entity", "fact", "event", "opinion", "instruction", "plan"}},
					"content": {Type: "string"},
					"subtype": {Type: "string"},
					"valid_from": {Type: "string", Description: "required for plan nodes; RFC3339 or YYYY-MM-DD"},
					"entity_ids": {Type: "array", Items: &gateway.ToolParameterSchema{Type: "string"}},
					"edge_type": {Type: "string", Description: "defaults to 'about'"},
					"salience": {Type: "number"},
					"scope": {Type: "number"},
					"source": {Type: "string", Enum: []string{"user", "assistant"}},
					"related_ids": {Type: "array", Items: &gateway.ToolParameterSchema{Type: "string"}, Description: "see_also edges"},
				},
				Required: []string{"type", "content"},
			},
		},
		gateway.ToolDefinition{
			Name: "supersede_memory",
			Description: "Replace an existing memory node's content, preserving its history via a superseded_by link.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{
					"old_id": {Type: "string"},
					"new_content": {Type: "string"},
				},
				Required: []string{"old_id", "new_content"},
			},
		},
		gateway.ToolDefinition{
			Name: "done",
			Description: "Call this when you have finished storing every item. Pass the number of items stored.",
			Parameters: gateway.ToolParameterSchema{
				Type: "object",
				Properties: map[string]gateway.ToolParameterSchema{"stored_count": {Type: "integer"}},
			},
		},
	)
}

// allowedStoreTypes mirrors store.NodeType's valid values for store_memory's
// type validation.
var allowedStoreTypes = map[string]store.NodeType{
	"entity": store.NodeEntity,
	"fact": store.NodeFact,
	"event": store.NodeEvent,
	"opinion": store.NodeOpinion,
	"instruction": store.NodeInstruction,
	"plan": store.NodePlan,
}

// remapMisroutedSubtype auto-remaps a subtype string the caller passed as
// `type` into the correct (type, subtype) pair
// ("caller passes tool_usage -> treat as instruction/tool_usage; scheduled
// -> plan/scheduled").
func remapMisroutedSubtype(nodeType, subtype string) (store.NodeType, string) {
	if _, ok := allowedStoreTypes[nodeType]; ok {
		return allowedStoreTypes[nodeType], subtype
	}
	remap := map[string]store.NodeType{
		"tool_usage": store.NodeInstruction, "rule": store.NodeInstruction, "process": store.NodeInstruction,
		"scheduled": store.NodePlan, "intended": store.NodePlan, "requested": store.NodePlan,
		"definitional": store.NodeFact, "causal": store.NodeFact, "conditional": store.NodeFact,
		"comparative": store.NodeFact, "negation": store.NodeFact,
		"action": store.NodeEvent, "decision": store.NodeEvent, "conversation": store.NodeEvent,
		"incident": store.NodeEvent, "outcome": store.NodeEvent,
	}
	if mapped, ok := remap[nodeType]; ok {
		return mapped, nodeType
	}
	return "", subtype
}

// ValidateStoreContent applies the store_memory validation rules from spec
// section 4.4: garbled strip-ratio test, repeated-word test (applied to
// content of two or more words), and the too-short-for-non-entity test.
func ValidateStoreContent(content string, nodeType store.NodeType) error {
	if store.IsGarbled(content) {
		return fmt.Errorf("content is garbled")
	}
	if len(strings.Fields(content)) > 1 && store.RepeatedWordRatio(content) > 0.50 {
		return fmt.Errorf("content is excessively repetitive")
	}
	if nodeType != store.NodeEntity && len(content) < 10 {
		return fmt.Errorf("content is too short")
	}
	return nil
}

func parseValidFrom(raw string) (int64, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("malformed valid_from %q", raw)
}

type storeMemoryArgs struct {
	Type string `json:"type"`
	Content string `json:"content"`
	Subtype string `json:"subtype"`
	ValidFrom string `json:"valid_from"`
	EntityIDs []string `json:"entity_ids"`
	EdgeType string `json:"edge_type"`
	Salience *float64 `json:"salience"`
	Scope *float64 `json:"scope"`
	Source string `json:"source"`
	RelatedIDs []string `json:"related_ids"`
}

// StoreMemory creates a node and edges to each entity_ids endpoint (default
// edge_type "about"), plus see_also edges to related_ids. Returns the
// created node's id in the result text.
func (d *Dispatcher) StoreMemory(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args storeMemoryArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for store_memory: %w", err)
	}

	nodeType, subtype := remapMisroutedSubtype(args.Type, args.Subtype)
	if nodeType == "" {
		return "", fmt.Errorf("store_memory: unrecognized type %q", args.Type)
	}
	if err := ValidateStoreContent(args.Content, nodeType); err != nil {
		return "", fmt.Errorf("store_memory: %w", err)
	}
	if args.Scope != nil && (*args.Scope < 0 || *args.Scope > 1) {
		return "", fmt.Errorf("store_memory: scope %v out of [0,1]", *args.Scope)
	}

	var validFrom *int64
	if nodeType == store.NodePlan {
		if strings.TrimSpace(args.ValidFrom) == "" {
			return "", fmt.Errorf("store_memory: valid_from is required for plan nodes")
		}
		ms, err := parseValidFrom(args.ValidFrom)
		if err != nil {
			return "", fmt.Errorf("store_memory: %w", err)
		}
		validFrom = &ms
	} else if args.ValidFrom != "" {
		ms, err := parseValidFrom(args.ValidFrom)
		if err != nil {
			return "", fmt.Errorf("store_memory: %w", err)
		}
		validFrom = &ms
	}

	source := store.SourceUser
	if args.Source == string(store.SourceAssistant) {
		source = store.SourceAssistant
	}
	salience := 1.0
	if args.Salience != nil {
		salience = *args.Salience
	}

	node := store.Node{
		ID: uuid.NewString(),
		NodeType: nodeType,
		Subtype: subtype,
		Content: args.Content,
		Salience: salience,
		Source: source,
		ValidFrom: validFrom,
		Scope: args.Scope,
	}
	id, err := d.Store.CreateNode(node)
	if err != nil {
		return "", fmt.Errorf("store_memory: %w", err)
	}
	if nodeType == store.NodeEntity {
		d.rememberEntity(args.Content, id)
	}

	vector, err := d.embedOne(ctx, args.Content, gateway.EmbedDocument)
	if err != nil {
		return "", fmt.Errorf("store_memory: embed: %w", err)
	}
	if err := d.Store.PutEmbedding(id, nodeType, vector); err != nil {
		return "", fmt.Errorf("store_memory: %w", err)
	}

	edgeType := args.EdgeType
	if edgeType == "" {
		edgeType = "about"
	}
	dedupEntities := dedupStrings(args.EntityIDs)
	var edgeErrs []string
	for _, entityID := range dedupEntities {
		if _, err := d.Store.CreateEdge(uuid.NewString(), id, entityID, edgeType, nil); err != nil {
			edgeErrs = append(edgeErrs, err.Error())
		}
	}
	for _, relatedID := range dedupStrings(args.RelatedIDs) {
		if _, err := d.Store.CreateEdge(uuid.NewString(), id, relatedID, "see_also", nil); err != nil {
			edgeErrs = append(edgeErrs, err.Error())
		}
	}

	result := fmt.Sprintf("stored %s node %s: %s", nodeType, id, args.Content)
	if len(edgeErrs) > 0 {
		result += fmt.Sprintf(" (%d edge(s) failed: %s)", len(edgeErrs), strings.Join(edgeErrs, "; "))
	}
	return Truncate(result), nil
}

// SupersedeMemory delegates validation and the edge-copy/dedup dance to the
// store, then re-embeds the replacement at the node's actual type.
func (d *Dispatcher) SupersedeMemory(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args struct {
		OldID string `json:"old_id"`
		NewContent string `json:"new_content"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return "", fmt.Errorf("invalid arguments for supersede_memory: %w", err)
	}
	if args.OldID == "" || strings.TrimSpace(args.NewContent) == "" {
		return "", fmt.Errorf("supersede_memory: old_id and new_content are required")
	}

	old, err := d.Store.GetNode(args.OldID)
	if err != nil {
		return "", fmt.Errorf("supersede_memory: %w", err)
	}
	if old == nil {
		return "", fmt.Errorf("supersede_memory: node %q not found", args.OldID)
	}

	newID, err := d.Store.SupersedeNode(args.OldID, args.NewContent, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("supersede_memory: %w", err)
	}

	vector, err := d.embedOne(ctx, args.NewContent, gateway.EmbedDocument)
	if err != nil {
		return "", fmt.Errorf("supersede_memory: embed: %w", err)
	}
	if err := d.Store.PutEmbedding(newID, old.NodeType, vector); err != nil {
		return "", fmt.Errorf("supersede_memory: %w", err)
	}

	return Truncate(fmt.Sprintf("superseded %s with %s: %s", args.OldID, newID, args.NewContent)), nil
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
