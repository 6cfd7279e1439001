package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed is the embedding capability. No embedding SDK
// for Voyage AI exists anywhere in the retrieved example corpus, so this
// one piece talks to the REST endpoint directly over net/http -- the
// deliberate, documented stdlib exception (see DESIGN.md).
type Embed struct {
	httpClient *http.Client
	baseURL string
	apiKey string
	model string
	dimension int
	usage *UsageAggregator
}

// NewEmbed builds the Embed capability against baseURL (the Voyage AI
// embeddings endpoint by default).
func NewEmbed(baseURL, apiKey, model string, dimension int, usage *UsageAggregator) *Embed {
	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1/embeddings"
	}
	return &Embed{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey: apiKey,
		model: model,
		dimension: dimension,
		usage: usage,
	}
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string `json:"model"`
	InputType string `json:"input_type"`
	OutputDimension int `json:"output_dimension"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index int `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

const embedBatchCap = 128

// Call embeds texts, batching at 128 per request. Empty strings are
// replaced with zero vectors without an external call; output vectors
// preserve input order.
func (e *Embed) Call(ctx context.Context, texts []string, kind EmbedKind, tag ChatTag) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var toFetch []string
	var fetchIdx []int

	for i, t := range texts {
		if t == "" {
			out[i] = make([]float32, e.dimension)
			continue
		}
		toFetch = append(toFetch, t)
		fetchIdx = append(fetchIdx, i)
	}

	for start := 0; start < len(toFetch); start += embedBatchCap {
		end := start + embedBatchCap
		if end > len(toFetch) {
			end = len(toFetch)
		}
		vectors, tokens, err := e.callWithRetry(ctx, toFetch[start:end], kind, 3)
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			out[fetchIdx[start+i]] = v
		}
		e.usage.Add(tag, Usage{PromptTokens: tokens})
	}

	return out, nil
}

func (e *Embed) callWithRetry(ctx context.Context, batch []string, kind EmbedKind, attempts int) ([][]float32, int, error) {
	delay := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}

		vectors, tokens, rateLimited, err := e.callOnce(ctx, batch, kind)
		if err == nil {
			return vectors, tokens, nil
		}
		lastErr = err
		if rateLimited {
			delay *= 2
		} else {
			delay = delay + delay/2
		}
	}
	return nil, 0, fmt.Errorf("embed call exhausted retries: %w", lastErr)
}

func (e *Embed) callOnce(ctx context.Context, batch []string, kind EmbedKind) ([][]float32, int, bool, error) {
	body, err := json.Marshal(embedRequest{
		Input: batch,
		Model: e.model,
		InputType: string(kind),
		OutputDimension: e.dimension,
	})
	if err != nil {
		return nil, 0, false, fmt.Errorf("marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, false, fmt.Errorf("build embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, false, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, 0, true, fmt.Errorf("embed rate limited: %s", resp.Status)
	}
	if resp.StatusCode >= 500 {
		return nil, 0, false, fmt.Errorf("embed transient failure: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, 0, false, fmt.Errorf("embed request rejected: %s: %s", resp.Status, string(raw))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, false, fmt.Errorf("decode embed response: %w", err)
	}

	out := make([][]float32, len(batch))
	for _, d := range parsed.Data {
		if d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, parsed.Usage.TotalTokens, false, nil
}
