package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIBackend implements chatBackend against an OpenAI-compatible
// function-calling endpoint via the SDK's typed request/response.
type openAIBackend struct {
	client openai.Client
	provider string
}

// NewOpenAIBackend builds a backend against baseURL (empty for the default
// OpenAI endpoint; an OpenRouter-compatible base URL also works since both
// speak the same chat-completions wire format).
func NewOpenAIBackend(providerName, apiKey, baseURL string) *openAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openAIBackend{client: openai.NewClient(opts...), provider: providerName}
}

func (b *openAIBackend) name() string { return b.provider }

func (b *openAIBackend) complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatResponse{}, classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, nil
	}

	msg := resp.Choices[0].Message
	out := ChatResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID: tc.ID,
			Name: tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	out.Usage = Usage{
		PromptTokens: int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			// Tool-call turns must carry their tool_calls so the following
			// RoleTool responses reference a valid call id.
			var assistant openai.ChatCompletionAssistantMessageParam
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name: tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		paramSchema := toJSONSchemaMap(t.Parameters)
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name: t.Name,
				Description: openai.String(t.Description),
				Parameters: paramSchema,
			},
		})
	}
	return out
}

// toJSONSchemaMap converts the domain ToolParameterSchema to the
// map[string]any shape openai.FunctionParameters expects.
func toJSONSchemaMap(s ToolParameterSchema) openai.FunctionParameters {
	b, err := json.Marshal(s)
	if err != nil {
		return openai.FunctionParameters{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return openai.FunctionParameters{}
	}
	return openai.FunctionParameters(m)
}

// classifyOpenAIErr tags network/5xx/overloaded errors as transient (with
// rate-limit detection for the doubled-backoff rule) so the retry loop in
// chat.go knows which errors are worth retrying.
func classifyOpenAIErr(err error) error {
	msg := strings.ToLower(err.Error())
	rateLimited := strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
	transient := rateLimited ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "50") // crude 5xx substring match on "500", "502", "503"

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		transient = transient || apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
		rateLimited = rateLimited || apiErr.StatusCode == 429
	}

	if !transient {
		return err
	}
	return &transientError{rateLimited: rateLimited, err: err}
}
