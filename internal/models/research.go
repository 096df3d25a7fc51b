package models

// SearchResult is one web result returned by the search provider.
type SearchResult struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	URL     string   `json:"url"`
	Snippet string   `json:"snippet,omitempty"`
	Score   *float64 `json:"score,omitempty"`
	Image   string   `json:"image,omitempty"`
}

// SearchImage is an image hit, optionally with a generated description.
type SearchImage struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query                    string `json:"query" validate:"required"`
	IncludeImages            bool   `json:"includeImages"`
	IncludeImageDescriptions bool   `json:"includeImageDescriptions"`
}

// SearchResponse is the normalised search provider response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Images  []SearchImage  `json:"images"`
	Answer  string         `json:"answer,omitempty"`
}

// ChatMessage is one conversation turn sent to the language model.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

// ResearchRequest is the JSON body for POST /api/research.
type ResearchRequest struct {
	Query string `json:"query" validate:"required"`
}

// ChatSection is one research turn: the query, its sources and the streamed
// reasoning and answer text.
type ChatSection struct {
	Query            string         `json:"query"`
	SearchResults    []SearchResult `json:"searchResults"`
	Response         string         `json:"response"`
	Reasoning        string         `json:"reasoning,omitempty"`
	Error            string         `json:"error,omitempty"`
	IsLoadingSources bool           `json:"isLoadingSources"`
	IsLoadingThought bool           `json:"isLoadingThought"`
}
