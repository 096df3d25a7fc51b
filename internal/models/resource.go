package models

import "time"

// Resource types.
const (
	ResourceLink = "link"
	ResourceNote = "note"
)

// Resource is a user-owned link or note in the second brain.
type Resource struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Content   string    `json:"content,omitempty"`
	Tags      []string  `json:"tags"`
	Pattern   string    `json:"pattern,omitempty"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateResourceRequest is the JSON body for POST /api/resources.
type CreateResourceRequest struct {
	Type    string   `json:"type"    validate:"omitempty,oneof=link note"`
	Title   string   `json:"title"   validate:"required"`
	URL     string   `json:"url"     validate:"omitempty,url"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"    validate:"max=5"`
	Pattern string   `json:"pattern"`
	Image   string   `json:"image"`
}

// Tag is a user-scoped label.
type Tag struct {
	ID     string `json:"id"`
	UserID string `json:"-"`
	Name   string `json:"name"`
}

// CreateTagRequest is the JSON body for POST /api/tags.
type CreateTagRequest struct {
	Name string `json:"name" validate:"required"`
}

// BrainChatRequest is the JSON body for POST /api/brain-chat.
type BrainChatRequest struct {
	Query      string `json:"query" validate:"required"`
	ResourceID string `json:"resourceId"`
}

// BrainSource is a resource cited by a brain-chat answer.
type BrainSource struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
}

// BrainChatResponse is returned by POST /api/brain-chat.
type BrainChatResponse struct {
	Answer  string        `json:"answer"`
	Sources []BrainSource `json:"sources"`
}
