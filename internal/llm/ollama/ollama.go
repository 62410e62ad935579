// Package ollama implements llm.Provider against the native Ollama API.
// Unlike Ollama's OpenAI-compatibility shim, the native /api/embeddings
// endpoint works with pure embedding models such as nomic-embed-text.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gapscan/gapscan/internal/llm"
)

const defaultBaseURL = "http://localhost:11434"

// Client implements llm.Provider for a local Ollama server.
type Client struct {
	baseURL    string
	model      string
	embedModel string
	http       *http.Client
}

// New creates an Ollama provider. model drives completions, embedModel
// drives embeddings; embedModel defaults to nomic-embed-text.
func New(baseURL, model, embedModel string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		embedModel: embedModel,
		http:       &http.Client{Timeout: 300 * time.Second},
	}
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	// Ollama's /api/generate takes a flat prompt; fold the system prompt and
	// turns into one string.
	var sb strings.Builder
	if prompt.SystemPrompt != "" {
		sb.WriteString(prompt.SystemPrompt)
		sb.WriteString("\n\n")
	}
	for _, m := range prompt.Messages {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	body := map[string]any{
		"model":  c.model,
		"prompt": sb.String(),
		"stream": false,
	}
	options := map[string]any{}
	if opts != nil {
		if opts.Temperature != nil {
			options["temperature"] = *opts.Temperature
		}
		if opts.TopP != nil {
			options["top_p"] = *opts.TopP
		}
		if opts.MaxTokens != nil {
			options["num_predict"] = *opts.MaxTokens
		}
		if len(opts.StopSeqs) > 0 {
			options["stop"] = opts.StopSeqs
		}
	}
	if len(options) > 0 {
		body["options"] = options
	}

	respBody, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Model    string `json:"model"`
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}

	return &llm.Response{
		Content: result.Response,
		Model:   result.Model,
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// The native endpoint embeds one prompt per call.
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		respBody, err := c.post(ctx, "/api/embeddings", map[string]any{
			"model":  c.embedModel,
			"prompt": text,
		})
		if err != nil {
			return nil, err
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decoding ollama embedding: %w", err)
		}
		if len(result.Embedding) == 0 {
			return nil, fmt.Errorf("ollama: empty embedding for text %d (is %q an embedding model?)", i, c.embedModel)
		}
		embeddings[i] = result.Embedding
	}
	return embeddings, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: %s: %s", resp.Status, respBody)
	}
	return respBody, nil
}
