package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/llm"
	"github.com/ayush/notsodumb/backend/internal/metrics"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/vector"
)

// Retrieval parameters. Grounded answers get a lower temperature and about a
// third of the open-ended token budget.
const (
	TopK = 5

	OpenTemperature = 0.9
	OpenMaxTokens   = 1500

	GroundedTemperature = 0.3
	GroundedMaxTokens   = 500
)

// Completer is satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Retriever answers questions over a user's resources.
type Retriever struct {
	embed   Embedder
	index   VectorIndex
	llm     Completer
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewRetriever(embed Embedder, index VectorIndex, c Completer, m *metrics.Metrics, log logrus.FieldLogger) *Retriever {
	return &Retriever{embed: embed, index: index, llm: c, metrics: m, log: log}
}

const (
	openPrompt     = "You are a helpful assistant. Answer the user's question clearly."
	groundedPrompt = "You answer questions using the user's saved resources. Base your answer on the provided context and say so when the context does not cover the question."
)

// Ask searches userID's resources, optionally limited to resourceID, and
// answers query from what it finds.
func (r *Retriever) Ask(ctx context.Context, userID, query, resourceID string) (*models.BrainChatResponse, error) {
	values, err := r.embed.Embed(ctx, query)
	r.metrics.Upstream("openai", err)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, values, TopK, Filter(userID, resourceID))
	r.metrics.Upstream("pinecone", err)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	req := llm.CompletionRequest{
		Messages: []models.ChatMessage{
			{Role: "system", Content: openPrompt},
			{Role: "user", Content: query},
		},
		Temperature: OpenTemperature,
		MaxTokens:   OpenMaxTokens,
	}
	if len(matches) > 0 {
		req = llm.CompletionRequest{
			Messages: []models.ChatMessage{
				{Role: "system", Content: groundedPrompt},
				{Role: "user", Content: "Context:\n\n" + BuildContext(matches) + "\n\nQuestion: " + query},
			},
			Temperature: GroundedTemperature,
			MaxTokens:   GroundedMaxTokens,
		}
	}
	r.log.WithFields(logrus.Fields{"matches": len(matches), "resource_id": resourceID}).Debug("brain chat")

	answer, err := r.llm.Complete(ctx, req)
	r.metrics.Upstream("openai", err)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	return &models.BrainChatResponse{Answer: answer, Sources: Sources(matches)}, nil
}

// Filter scopes an index query to a user and optionally one resource.
func Filter(userID, resourceID string) map[string]any {
	f := map[string]any{"userId": map[string]any{"$eq": userID}}
	if resourceID != "" {
		f["resourceId"] = map[string]any{"$eq": resourceID}
	}
	return f
}

// BuildContext renders one block per match from its metadata.
func BuildContext(matches []vector.Match) string {
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		var b strings.Builder
		fmt.Fprintf(&b, "Title: %s\nType: %s", metaString(m.Metadata, "title"), metaString(m.Metadata, "type"))
		if c := metaString(m.Metadata, "content"); c != "" {
			fmt.Fprintf(&b, "\nContent: %s", c)
		}
		if u := metaString(m.Metadata, "url"); u != "" {
			fmt.Fprintf(&b, "\nURL: %s", u)
		}
		if tags := metaStrings(m.Metadata, "tags"); len(tags) > 0 {
			fmt.Fprintf(&b, "\nTags: %s", strings.Join(tags, ", "))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// Sources lists the distinct resources behind matches, in match order.
func Sources(matches []vector.Match) []models.BrainSource {
	out := []models.BrainSource{}
	seen := make(map[models.BrainSource]bool)
	for _, m := range matches {
		s := models.BrainSource{
			Title: metaString(m.Metadata, "title"),
			Type:  metaString(m.Metadata, "type"),
			URL:   metaString(m.Metadata, "url"),
		}
		if s.Title == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func metaString(md map[string]any, key string) string {
	s, _ := md[key].(string)
	return s
}

func metaStrings(md map[string]any, key string) []string {
	switch v := md[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
