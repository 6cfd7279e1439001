package classify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/gomemory/internal/gateway"
)

// Chat is the minimal gateway capability the classifier needs.
type Chat interface {
	Call(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

// Service is the prompt classifier.
type Service struct {
	Chat Chat
	Model string
	Log zerolog.Logger
}

// New builds a classifier service.
func New(chat Chat, model string, log zerolog.Logger) *Service {
	return &Service{Chat: chat, Model: model, Log: log}
}

// Classify splits prompt into sentences, classifies each in parallel (with
// the full prompt as pronoun-resolution context), and merges the results.
// Parse failure is retried once at higher temperature; if both fail, the
// rule-based fallback is used for that sentence
func (s *Service) Classify(ctx context.Context, prompt string) (Result, error) {
	sentences := SplitSentences(prompt)
	if len(sentences) == 0 {
		return Result{}, nil
	}

	results := make([]Result, len(sentences))
	g, gctx := errgroup.WithContext(ctx)
	for i, sentence := range sentences {
		i, sentence := i, sentence
		g.Go(func() error {
			results[i] = s.classifySentence(gctx, sentence, prompt)
			return nil
		})
	}
	// Per-sentence classification never returns an error to the group (each
	// failure degrades to the rule-based fallback internally), so Wait only
	// propagates ctx cancellation.
	if err := g.Wait(); err != nil {
		s.Log.Warn().Err(err).Msg("classify: sentence fan-out cancelled")
	}

	merged := Merge(results)
	mentionsEntityOrQuestion := len(merged.Entities) > 0 || strings.Contains(prompt, "?")
	deriveOperations(&merged, prompt, mentionsEntityOrQuestion)
	return merged, nil
}

func (s *Service) classifySentence(ctx context.Context, sentence, fullPrompt string) Result {
	req := gateway.ChatRequest{
		Model: s.Model,
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: SystemPrompt},
			{Role: gateway.RoleUser, Content: BuildUserPrompt(sentence, fullPrompt)},
		},
		Temperature: 0.0,
		Tag: gateway.TagL1,
	}
	resp, err := s.Chat.Call(ctx, req)
	if err == nil {
		if r, perr := ParseResponse(resp.Content); perr == nil {
			mentionsEntityOrQuestion := len(r.Entities) > 0 || strings.Contains(sentence, "?")
			deriveOperations(r, sentence, mentionsEntityOrQuestion)
			return *r
		}
	}

	// Retry once at slightly higher temperature
	req.Temperature = 0.4
	resp2, err2 := s.Chat.Call(ctx, req)
	if err2 == nil {
		if r, perr := ParseResponse(resp2.Content); perr == nil {
			mentionsEntityOrQuestion := len(r.Entities) > 0 || strings.Contains(sentence, "?")
			deriveOperations(r, sentence, mentionsEntityOrQuestion)
			return *r
		}
	}

	s.Log.Warn().Str("sentence", sentence).Msg("classify: both parse attempts failed, using rule-based fallback")
	return RuleBasedFallback(sentence)
}
