// Package vector talks to a Pinecone index over its REST data-plane API.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Vector is one stored embedding with its metadata.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is a query hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Client calls a single Pinecone index host.
type Client struct {
	host       string
	apiKey     string
	namespace  string
	httpClient *http.Client
}

func NewClient(host, apiKey, namespace string) *Client {
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &Client{host: strings.TrimRight(host, "/"), apiKey: apiKey, namespace: namespace, httpClient: &http.Client{}}
}

// Upsert writes vectors, replacing any with the same id.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	resp, err := c.post(ctx, "/vectors/upsert", map[string]any{
		"vectors":   vectors,
		"namespace": c.namespace,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResp(resp, "/vectors/upsert")
}

// Query returns the topK nearest vectors that satisfy filter.
func (c *Client) Query(ctx context.Context, values []float32, topK int, filter map[string]any) ([]Match, error) {
	resp, err := c.post(ctx, "/query", map[string]any{
		"vector":          values,
		"topK":            topK,
		"filter":          filter,
		"includeMetadata": true,
		"namespace":       c.namespace,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResp(resp, "/query"); err != nil {
		return nil, err
	}
	var result struct {
		Matches []Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("pinecone /query: decode: %w", err)
	}
	return result.Matches, nil
}

// Delete removes vectors by id.
func (c *Client) Delete(ctx context.Context, ids ...string) error {
	resp, err := c.post(ctx, "/vectors/delete", map[string]any{
		"ids":       ids,
		"namespace": c.namespace,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResp(resp, "/vectors/delete")
}

func checkResp(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("pinecone %s returned %d: %s", path, resp.StatusCode, string(body))
}

func (c *Client) post(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone %s: %w", path, err)
	}
	return resp, nil
}
