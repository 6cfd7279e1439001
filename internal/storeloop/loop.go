// Package storeloop implements the bounded tool-calling loop that
// materializes the storage-intent record and links edges, including the
// force-store safety net.
package storeloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/plan"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/tools"
	"github.com/kittclouds/gomemory/internal/trace"
)

const systemPrompt = `You are the storage agent of a personal memory system.
You are given a list of items to store. For each entity mentioned, search for it
first to obtain its id; create missing entities before storing items that
reference them. Store every item, linking to the relevant entity ids, and
preserve exact numbers, dates, and original wording. Use supersede_memory (after
search_facts) for corrections. Call "done" with the number of items stored once
finished.`

// Chat is the minimal gateway capability the loop needs.
type Chat interface {
	Call(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

// Result is the store loop's output.
type Result struct {
	Turns []trace.Turn
	ForceStored []string // result lines from the force-store safety net
}

// Run executes the bounded store loop against items, then applies the
// force-store safety net if the loop completed without ever calling
// store_memory/supersede_memory while items is non-empty.
func Run(ctx context.Context, chat Chat, disp *tools.Dispatcher, model string, items []plan.StoreItem, maxTurns int, timeout time.Duration, log zerolog.Logger) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(items) == 0 {
		return Result{}
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: systemPrompt},
		{Role: gateway.RoleUser, Content: buildUserPrompt(items)},
	}

	var (
		turns []trace.Turn
		toolCallCount int
		consecutiveErrors int
		firstTurn = true
		anyToolSucceeded bool
		storeCalled bool
	)

	toolDefs := tools.StoreToolDefs()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("store loop: timed out")
			goto done
		default:
		}
		if toolCallCount >= maxTurns {
			break
		}

		resp, err := chat.Call(ctx, gateway.ChatRequest{
			Model: model, Messages: messages, Tools: toolDefs, Tag: gateway.TagL2,
		})
		if err != nil {
			log.Warn().Err(err).Msg("store loop: chat call failed")
			break
		}

		if len(resp.ToolCalls) == 0 {
			if firstTurn {
				messages = append(messages, gateway.Message{Role: gateway.RoleUser, Content: "You MUST use the store tools. Do not just acknowledge."})
				firstTurn = false
				continue
			}
			if anyToolSucceeded {
				break
			}
			break
		}
		firstTurn = false
		messages = append(messages, gateway.Message{Role: gateway.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})

		doneCalled := false
		for _, tc := range resp.ToolCalls {
			if toolCallCount >= maxTurns {
				break
			}
			if tools.IsDone(tc.Name) {
				doneCalled = true
				messages = append(messages, gateway.Message{Role: gateway.RoleTool, Content: "acknowledged", ToolCallID: tc.ID})
				continue
			}

			toolCallCount++
			turn := trace.Turn{Pipeline: "store", ToolCall: tc.Name, Arguments: tc.Arguments, Reasoning: resp.Content}

			var result string
			var callErr error
			if !json.Valid([]byte(tc.Arguments)) {
				callErr = fmt.Errorf("invalid JSON arguments: %s", tc.Arguments)
			} else {
				result, callErr = disp.DispatchStore(ctx, tc.Name, json.RawMessage(tc.Arguments))
			}

			if callErr != nil {
				consecutiveErrors++
				result = fmt.Sprintf("error: %v", callErr)
				turn.Error = callErr.Error()
			} else {
				consecutiveErrors = 0
				anyToolSucceeded = true
				if tc.Name == "store_memory" || tc.Name == "supersede_memory" {
					storeCalled = true
				}
			}
			turn.Result = result
			turns = append(turns, turn)
			messages = append(messages, gateway.Message{Role: gateway.RoleTool, Content: result, ToolCallID: tc.ID})

			if consecutiveErrors >= 3 {
				log.Debug().Msg("store loop: three consecutive tool errors, terminating")
				goto done
			}
		}
		if doneCalled {
			break
		}
	}

done:
	var forceStored []string
	if !storeCalled {
		forceStored = forceStore(ctx, disp, items, log)
	}
	return Result{Turns: turns, ForceStored: forceStored}
}

func buildUserPrompt(items []plan.StoreItem) string {
	var sb strings.Builder
	sb.WriteString("ITEMS TO STORE:\n")
	for i, it := range items {
		sb.WriteString(fmt.Sprintf("%d. [%s", i+1, it.Type))
		if it.Subtype != "" {
			sb.WriteString("/" + it.Subtype)
		}
		sb.WriteString("] " + it.Content)
		if it.ValidFrom != "" {
			sb.WriteString(" (valid_from: " + it.ValidFrom + ")")
		}
		if it.Reason != "" {
			sb.WriteString(" -- " + it.Reason)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// defaultSalience applies the force-store safety net's per-type defaults.
func defaultSalience(item plan.StoreItem) float64 {
	if item.Salience != nil {
		return *item.Salience
	}
	switch item.Type {
	case "fact":
		return 1.0
	case "event":
		return 0.8
	case "opinion":
		return 0.6
	case "instruction":
		return 2.0
	default:
		return 1.0
	}
}

// forceStore invokes the dispatcher directly for each item with sensible
// defaults and edges to whichever entity ids were discovered by any
// search_entity turn during this run
func forceStore(ctx context.Context, disp *tools.Dispatcher, items []plan.StoreItem, log zerolog.Logger) []string {
	known := disp.KnownEntityIDs()
	entityIDs := make([]string, 0, len(known))
	for _, id := range known {
		entityIDs = append(entityIDs, id)
	}

	validTypes := map[store.NodeType]bool{
		store.NodeEntity: true, store.NodeFact: true, store.NodeEvent: true,
		store.NodeOpinion: true, store.NodeInstruction: true, store.NodePlan: true,
	}

	var stored []string
	for _, item := range items {
		nodeType := store.NodeType(item.Type)
		if !validTypes[nodeType] {
			log.Warn().Str("type", item.Type).Msg("force-store: unrecognized item type, skipping")
			continue
		}
		if err := tools.ValidateStoreContent(item.Content, nodeType); err != nil {
			log.Warn().Err(err).Msg("force-store: content failed validation, skipping")
			continue
		}

		args := map[string]any{
			"type": item.Type,
			"content": item.Content,
			"subtype": item.Subtype,
			"entity_ids": entityIDs,
			"salience": defaultSalience(item),
		}
		if item.Scope != nil {
			args["scope"] = *item.Scope
		}
		if item.ValidFrom != "" {
			args["valid_from"] = item.ValidFrom
		}
		raw, _ := json.Marshal(args)

		result, err := disp.StoreMemory(ctx, raw)
		if err != nil {
			log.Warn().Err(err).Msg("force-store: store_memory failed")
			continue
		}
		stored = append(stored, result)
	}
	return stored
}
