// Package search wraps the Tavily web search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ayush/notsodumb/backend/internal/models"
)

// DefaultMaxResults is used when a request leaves MaxResults at zero.
const DefaultMaxResults = 8

// Request is one search call.
type Request struct {
	Query                    string
	IncludeImages            bool
	IncludeImageDescriptions bool
	MaxResults               int
}

// Client calls the Tavily search endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, httpClient: &http.Client{}}
}

type tavilyImage struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string   `json:"title"`
		URL     string   `json:"url"`
		Content string   `json:"content"`
		Score   *float64 `json:"score"`
	} `json:"results"`
	// Images is either a list of URLs or, with descriptions enabled, a list
	// of {url, description} objects.
	Images []json.RawMessage `json:"images"`
}

// Search runs the query and normalises the response.
func (c *Client) Search(ctx context.Context, req Request) (*models.SearchResponse, error) {
	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	body, err := json.Marshal(map[string]any{
		"api_key":                    c.apiKey,
		"query":                      req.Query,
		"search_depth":               "advanced",
		"include_answer":             true,
		"include_images":             req.IncludeImages,
		"include_image_descriptions": req.IncludeImageDescriptions,
		"max_results":                limit,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tavily /search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily /search returned %d: %s", resp.StatusCode, string(msg))
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("tavily /search: decode: %w", err)
	}
	return normalise(&tr), nil
}

func normalise(tr *tavilyResponse) *models.SearchResponse {
	out := &models.SearchResponse{
		Results: make([]models.SearchResult, 0, len(tr.Results)),
		Images:  make([]models.SearchImage, 0, len(tr.Images)),
		Answer:  tr.Answer,
	}
	for _, r := range tr.Results {
		out.Results = append(out.Results, models.SearchResult{
			Title:   r.Title,
			Content: r.Content,
			URL:     r.URL,
			Snippet: snippet(r.Content),
			Score:   r.Score,
		})
	}
	for _, raw := range tr.Images {
		var url string
		if err := json.Unmarshal(raw, &url); err == nil {
			out.Images = append(out.Images, models.SearchImage{URL: url})
			continue
		}
		var img tavilyImage
		if err := json.Unmarshal(raw, &img); err == nil && img.URL != "" {
			out.Images = append(out.Images, models.SearchImage{URL: img.URL, Description: img.Description})
		}
	}
	for i := range out.Results {
		if i < len(out.Images) {
			out.Results[i].Image = out.Images[i].URL
		}
	}
	return out
}

func snippet(content string) string {
	const limit = 200
	r := []rune(strings.TrimSpace(content))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "…"
}
