package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// chatBackend is the minimal seam between the retry/fallback policy below
// and a concrete provider SDK.
type chatBackend interface {
	name() string
	complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Chat is the chat-model capability: up to 3 retries
// with increasing delay on transient/overloaded responses, doubled backoff
// on rate limits, and a fallback to a different provider (system + flattened
// user messages only) if the primary comes back empty after one extra retry.
type Chat struct {
	primary chatBackend
	fallback chatBackend // may be nil
	breakers map[string]*gobreaker.CircuitBreaker
	usage *UsageAggregator
	log zerolog.Logger
}

// NewChat builds the Chat capability. fallback may be nil, in which case an
// empty-response primary result is returned as-is
func NewChat(primary, fallback chatBackend, usage *UsageAggregator, log zerolog.Logger) *Chat {
	c := &Chat{primary: primary, fallback: fallback, usage: usage, log: log, breakers: map[string]*gobreaker.CircuitBreaker{}}
	c.breakers[primary.name()] = newBreaker(primary.name())
	if fallback != nil {
		c.breakers[fallback.name()] = newBreaker(fallback.name())
	}
	return c
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		MaxRequests: 1,
		Interval: 60 * time.Second,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// transientError marks a response as a retryable transient failure
// (network/5xx/overloaded); rateLimited additionally marks doubled backoff.
type transientError struct {
	rateLimited bool
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Call executes req against the primary backend with the retry and
// fallback policy, recording usage under req.Tag.
func (c *Chat) Call(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	resp, err := c.callWithRetry(ctx, c.primary, req, 3)
	if err == nil && (resp.Content != "" || len(resp.ToolCalls) > 0) {
		c.usage.Add(req.Tag, resp.Usage)
		return resp, nil
	}

	// One additional retry before considering fallback
	resp2, err2 := c.callWithRetry(ctx, c.primary, req, 1)
	if err2 == nil && (resp2.Content != "" || len(resp2.ToolCalls) > 0) {
		c.usage.Add(req.Tag, resp2.Usage)
		return resp2, nil
	}

	if c.fallback == nil {
		c.log.Warn().Str("tag", string(req.Tag)).Msg("chat call returned empty and no fallback is configured")
		return resp2, nil
	}

	c.log.Warn().Str("tag", string(req.Tag)).Msg("falling back to secondary chat provider")
	fallbackReq := flattenForFallback(req)
	resp3, err3 := c.callWithRetry(ctx, c.fallback, fallbackReq, 3)
	if err3 != nil {
		c.log.Warn().Err(err3).Msg("fallback chat provider also failed; returning empty response")
		return ChatResponse{}, nil
	}
	c.usage.Add(req.Tag, resp3.Usage)
	return resp3, nil
}

// flattenForFallback keeps only the system message and a single concatenated
// user message fallback contract.
func flattenForFallback(req ChatRequest) ChatRequest {
	out := req
	var system Message
	var userParts []string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = m
		case RoleUser:
			userParts = append(userParts, m.Content)
		}
	}
	messages := []Message{}
	if system.Content != "" {
		messages = append(messages, system)
	}
	combined := ""
	for i, p := range userParts {
		if i > 0 {
			combined += "\n\n"
		}
		combined += p
	}
	messages = append(messages, Message{Role: RoleUser, Content: combined})
	out.Messages = messages
	out.Tools = nil
	return out
}

func (c *Chat) callWithRetry(ctx context.Context, backend chatBackend, req ChatRequest, attempts int) (ChatResponse, error) {
	breaker := c.breakers[backend.name()]
	var lastErr error
	delay := 500 * time.Millisecond

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ChatResponse{}, ctx.Err()
			}
		}

		result, err := breaker.Execute(func() (interface{}, error) {
			return backend.complete(ctx, req)
		})
		if err == nil {
			return result.(ChatResponse), nil
		}

		lastErr = err
		var transient *transientError
		if !errors.As(err, &transient) {
			return ChatResponse{}, err
		}
		if transient.rateLimited {
			delay *= 2
		} else {
			delay = delay + delay/2
		}
	}
	return ChatResponse{}, fmt.Errorf("chat call exhausted retries: %w", lastErr)
}
