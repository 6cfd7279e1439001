// Package retrieve implements the bounded tool-calling loop over the
// retrieve-set.
package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/tools"
	"github.com/kittclouds/gomemory/internal/trace"
)

const nudgeMessage = "You MUST use the search tools. Do not answer from your own knowledge."

const systemPrompt = `You are the retrieval agent of a personal memory system.
Use the available tools to gather context relevant to the user's prompt, following
the provided search plan. Call "done" once you have enough context, or when no
further search would help.`

// Chat is the minimal gateway capability the loop needs.
type Chat interface {
	Call(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

// Result is the retrieve loop's output: the trace turns it produced plus
// any supplementary free-text context the model volunteered.
type Result struct {
	Turns []trace.Turn
	Supplementary string
}

// Run executes the bounded retrieve loop: terminates on "done", the
// maxTurns tool-call cap, the timeout wall clock, three consecutive tool
// errors, or a no-tool-call turn after at least one prior success. A
// no-tool-call first turn gets one nudge
func Run(ctx context.Context, chat Chat, disp *tools.Dispatcher, model, prompt, searchPlan string, maxTurns int, timeout time.Duration, log zerolog.Logger) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: systemPrompt},
		{Role: gateway.RoleUser, Content: buildUserPrompt(prompt, searchPlan)},
	}

	var (
		turns []trace.Turn
		toolCallCount int
		consecutiveErrors int
		firstTurn = true
		anyToolSucceeded bool
		supplementary string
	)

	toolDefs := tools.RetrieveToolDefs()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("retrieve loop: timed out")
			return Result{Turns: turns, Supplementary: supplementary}
		default:
		}
		if toolCallCount >= maxTurns {
			break
		}

		resp, err := chat.Call(ctx, gateway.ChatRequest{
			Model: model, Messages: messages, Tools: toolDefs, Tag: gateway.TagL2,
		})
		if err != nil {
			log.Warn().Err(err).Msg("retrieve loop: chat call failed")
			break
		}

		if len(resp.ToolCalls) == 0 {
			if firstTurn {
				messages = append(messages, gateway.Message{Role: gateway.RoleUser, Content: nudgeMessage})
				firstTurn = false
				continue
			}
			if anyToolSucceeded {
				supplementary = resp.Content
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
			turn := trace.Turn{Pipeline: "retrieve", ToolCall: tc.Name, Arguments: tc.Arguments, Reasoning: resp.Content}

			var result string
			var callErr error
			if !json.Valid([]byte(tc.Arguments)) {
				callErr = fmt.Errorf("invalid JSON arguments: %s", tc.Arguments)
			} else {
				result, callErr = disp.DispatchRetrieve(ctx, tc.Name, json.RawMessage(tc.Arguments))
			}

			if callErr != nil {
				consecutiveErrors++
				result = fmt.Sprintf("error: %v", callErr)
				turn.Error = callErr.Error()
			} else {
				consecutiveErrors = 0
				anyToolSucceeded = true
			}
			turn.Result = result
			turns = append(turns, turn)
			messages = append(messages, gateway.Message{Role: gateway.RoleTool, Content: result, ToolCallID: tc.ID})

			if consecutiveErrors >= 3 {
				log.Debug().Msg("retrieve loop: three consecutive tool errors, terminating")
				return Result{Turns: turns, Supplementary: supplementary}
			}
		}
		if doneCalled {
			break
		}
	}

	return Result{Turns: turns, Supplementary: supplementary}
}

func buildUserPrompt(prompt, searchPlan string) string {
	if searchPlan == "" {
		return prompt
	}
	return fmt.Sprintf("%s\n\nSUGGESTED SEARCH PLAN:\n%s", prompt, searchPlan)
}
