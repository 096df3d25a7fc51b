// Package llm is a small client for an OpenAI-compatible chat and
// embeddings API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ayush/notsodumb/backend/internal/models"
)

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Client calls the chat completions and embeddings endpoints.
type Client struct {
	baseURL        string
	apiKey         string
	chatModel      string
	embeddingModel string
	httpClient     *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	HTTPClient     *http.Client
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		chatModel:      opts.ChatModel,
		embeddingModel: opts.EmbeddingModel,
		httpClient:     hc,
	}
}

// CompletionRequest is a non-streaming chat completion call. Model defaults
// to the client's chat model; zero MaxTokens leaves the vendor default.
type CompletionRequest struct {
	Model       string
	Messages    []models.ChatMessage
	Temperature float64
	MaxTokens   int
	JSON        bool
}

type chatBody struct {
	Model          string               `json:"model"`
	Messages       []models.ChatMessage `json:"messages"`
	Temperature    *float64             `json:"temperature,omitempty"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
	Stream         bool                 `json:"stream,omitempty"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// checkResp returns an error carrying the upstream body when the status is not 2xx.
func checkResp(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("openai %s returned %d: %s", path, resp.StatusCode, string(body))
}

// Complete returns the first choice's message content.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := chatBody{
		Model:     c.model(req.Model),
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	temp := req.Temperature
	body.Temperature = &temp
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkResp(resp, "/chat/completions"); err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("openai /chat/completions: decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return result.Choices[0].Message.Content, nil
}

// Stream opens a streaming completion and returns the raw event-stream body.
// The caller must close it.
func (c *Client) Stream(ctx context.Context, model string, messages []models.ChatMessage) (io.ReadCloser, error) {
	resp, err := c.post(ctx, "/chat/completions", chatBody{
		Model:    c.model(model),
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	if err := checkResp(resp, "/chat/completions"); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.post(ctx, "/embeddings", map[string]string{
		"model": c.embeddingModel,
		"input": text,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResp(resp, "/embeddings"); err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openai /embeddings: decode: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("openai /embeddings: no data")
	}
	return result.Data[0].Embedding, nil
}

func (c *Client) model(m string) string {
	if m != "" {
		return m
	}
	return c.chatModel
}

func (c *Client) post(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai %s: %w", path, err)
	}
	return resp, nil
}
