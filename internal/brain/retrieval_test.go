package brain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/vector"
)

func match(title, typ, url string, tags ...any) vector.Match {
	return vector.Match{Metadata: map[string]any{
		"title": title, "type": typ, "url": url, "content": "body of " + title, "tags": tags,
	}}
}

func TestAskWithoutMatches(t *testing.T) {
	llmStub := &fakeCompleter{answer: "general answer"}
	index := newFakeIndex()
	r := NewRetriever(&fakeEmbedder{}, index, llmStub, nil, quietLogger())

	resp, err := r.Ask(context.Background(), "u1", "what is ownership?", "")
	require.NoError(t, err)

	assert.Equal(t, "general answer", resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)

	require.Len(t, llmStub.reqs, 1)
	assert.Equal(t, OpenTemperature, llmStub.reqs[0].Temperature)
	assert.Equal(t, OpenMaxTokens, llmStub.reqs[0].MaxTokens)
	assert.Equal(t, "what is ownership?", llmStub.reqs[0].Messages[1].Content)

	assert.Equal(t, TopK, index.topK)
	assert.Equal(t, map[string]any{"userId": map[string]any{"$eq": "u1"}}, index.filter)
}

func TestAskWithMatches(t *testing.T) {
	llmStub := &fakeCompleter{answer: "grounded"}
	index := newFakeIndex()
	index.matches = []vector.Match{
		match("The Book", "link", "https://doc.rust-lang.org/book/", "rust"),
		match("The Book", "link", "https://doc.rust-lang.org/book/", "rust"),
		match("Lifetimes", "note", ""),
	}
	r := NewRetriever(&fakeEmbedder{}, index, llmStub, nil, quietLogger())

	resp, err := r.Ask(context.Background(), "u1", "borrowing?", "res-1")
	require.NoError(t, err)

	assert.Equal(t, []models.BrainSource{
		{Title: "The Book", Type: "link", URL: "https://doc.rust-lang.org/book/"},
		{Title: "Lifetimes", Type: "note"},
	}, resp.Sources)

	req := llmStub.reqs[0]
	assert.Equal(t, GroundedTemperature, req.Temperature)
	assert.Equal(t, GroundedMaxTokens, req.MaxTokens)
	assert.Contains(t, req.Messages[1].Content, "Title: Lifetimes\nType: note\nContent: body of Lifetimes")
	assert.Contains(t, req.Messages[1].Content, "Tags: rust")
	assert.Contains(t, req.Messages[1].Content, "Question: borrowing?")

	assert.Equal(t, map[string]any{"$eq": "res-1"}, index.filter["resourceId"])
}

func TestAskCompletionFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, newFakeIndex(), &fakeCompleter{}, nil, quietLogger())
	_, err := r.Ask(context.Background(), "u1", "q", "")
	assert.Error(t, err)
}

func TestBuildContextOmitsEmptyFields(t *testing.T) {
	ctx := BuildContext([]vector.Match{{Metadata: map[string]any{"title": "t", "type": "note"}}})
	assert.Equal(t, "Title: t\nType: note", ctx)
}
