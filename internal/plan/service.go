package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/gomemory/internal/gateway"
)

// Chat is the minimal gateway capability the planner/filter needs.
type Chat interface {
	Call(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

// Service runs planRetrieval and filterForStorage.
type Service struct {
	Chat Chat
	Model string
	Log zerolog.Logger

	// Archetypes is the instruction archetype table used by
	// filterForStorage; nil falls back to InstructionArchetypes.
	Archetypes []Archetype
}

// New builds a planner/filter service using the built-in archetype table.
func New(chat Chat, model string, log zerolog.Logger) *Service {
	return &Service{Chat: chat, Model: model, Log: log}
}

// NewWithArchetypes builds a planner/filter service whose filterForStorage
// prompt lists the given archetype table in place of the built-in one, as
// produced by LoadArchetypeOverrides.
func NewWithArchetypes(chat Chat, model string, log zerolog.Logger, archetypes []Archetype) *Service {
	return &Service{Chat: chat, Model: model, Log: log, Archetypes: archetypes}
}

// Output bundles both planner/filter calls' results.
type Output struct {
	SearchPlan string
	Filter FilterResult
}

// Run executes planRetrieval and filterForStorage as two independent,
// parallel model calls.
func (s *Service) Run(ctx context.Context, prompt string, retrieveTools []gateway.ToolDefinition) Output {
	var out Output
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out.SearchPlan = s.planRetrieval(gctx, prompt, retrieveTools)
		return nil
	})
	g.Go(func() error {
		out.Filter = s.filterForStorage(gctx, prompt)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.Log.Warn().Err(err).Msg("plan: fan-out cancelled")
	}
	return out
}

func (s *Service) planRetrieval(ctx context.Context, prompt string, tools []gateway.ToolDefinition) string {
	req := gateway.ChatRequest{
		Model: s.Model,
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: retrievalSystemPrompt},
			{Role: gateway.RoleUser, Content: BuildRetrievalPrompt(prompt, tools)},
		},
		Tag: gateway.TagL1,
	}
	resp, err := s.Chat.Call(ctx, req)
	if err != nil {
		s.Log.Warn().Err(err).Msg("plan: planRetrieval call failed")
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

func (s *Service) filterForStorage(ctx context.Context, prompt string) FilterResult {
	req := gateway.ChatRequest{
		Model: s.Model,
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: filterSystemPrompt},
			{Role: gateway.RoleUser, Content: BuildFilterPrompt(prompt, s.Archetypes)},
		},
		Tag: gateway.TagL1,
	}
	resp, err := s.Chat.Call(ctx, req)
	if err != nil {
		s.Log.Warn().Err(err).Msg("plan: filterForStorage call failed")
		return FilterResult{SkipReason: "filter call failed"}
	}

	result, perr := parseFilterResponse(resp.Content)
	if perr != nil {
		s.Log.Warn().Err(perr).Msg("plan: filterForStorage parse failed")
		return FilterResult{SkipReason: "filter response unparseable"}
	}
	return *result
}

func parseFilterResponse(raw string) (*FilterResult, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return &FilterResult{SkipReason: "empty response"}, nil
	}
	var r FilterResult
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("parse filter response: %w", err)
	}
	return &r, nil
}
