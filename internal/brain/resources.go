package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/metrics"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/vector"
)

// ResourceStore is satisfied by *store.PostgresStore.
type ResourceStore interface {
	CreateResource(ctx context.Context, r *models.Resource) (*models.Resource, error)
	ListResources(ctx context.Context, userID string) ([]models.Resource, error)
	GetResource(ctx context.Context, userID, id string) (*models.Resource, error)
	DeleteResource(ctx context.Context, userID, id string) error
}

// Embedder is satisfied by *llm.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is satisfied by *vector.Client.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors []vector.Vector) error
	Query(ctx context.Context, values []float32, topK int, filter map[string]any) ([]vector.Match, error)
	Delete(ctx context.Context, ids ...string) error
}

// Resources stores resources and keeps the vector index in step with them.
type Resources struct {
	store   ResourceStore
	tags    *Tags
	embed   Embedder
	index   VectorIndex
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewResources(s ResourceStore, tags *Tags, embed Embedder, index VectorIndex, m *metrics.Metrics, log logrus.FieldLogger) *Resources {
	return &Resources{store: s, tags: tags, embed: embed, index: index, metrics: m, log: log}
}

// Create stores a resource for userID together with any missing tags, then
// indexes it. A request whose new tags exceed the cap stores nothing.
// Indexing failures are logged and do not fail the call.
func (s *Resources) Create(ctx context.Context, userID string, req models.CreateResourceRequest) (*models.Resource, error) {
	r := &models.Resource{
		UserID:  userID,
		Type:    req.Type,
		Title:   strings.TrimSpace(req.Title),
		URL:     strings.TrimSpace(req.URL),
		Content: req.Content,
		Pattern: req.Pattern,
		Image:   req.Image,
	}
	if r.Type == "" {
		r.Type = models.ResourceNote
		if r.URL != "" {
			r.Type = models.ResourceLink
		}
	}

	seen := make(map[string]bool, len(req.Tags))
	for _, name := range req.Tags {
		name = NormalizeTag(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		r.Tags = append(r.Tags, name)
	}
	if err := s.tags.Admit(ctx, userID, r.Tags); err != nil {
		return nil, err
	}

	created, err := s.store.CreateResource(ctx, r)
	if err != nil {
		return nil, err
	}
	created.Tags = r.Tags
	if created.Tags == nil {
		created.Tags = []string{}
	}

	if err := s.indexResource(ctx, created); err != nil {
		s.log.WithError(err).WithField("resource_id", created.ID).Warn("resource indexing failed")
	}
	return created, nil
}

func (s *Resources) indexResource(ctx context.Context, r *models.Resource) error {
	values, err := s.embed.Embed(ctx, EmbeddingText(r))
	s.metrics.Upstream("openai", err)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	err = s.index.Upsert(ctx, []vector.Vector{{ID: r.ID, Values: values, Metadata: Metadata(r)}})
	s.metrics.Upstream("pinecone", err)
	return err
}

func (s *Resources) List(ctx context.Context, userID string) ([]models.Resource, error) {
	out, err := s.store.ListResources(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Resource{}
	}
	return out, nil
}

func (s *Resources) Get(ctx context.Context, userID, id string) (*models.Resource, error) {
	return s.store.GetResource(ctx, userID, id)
}

// Delete removes the resource and its vector.
func (s *Resources) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteResource(ctx, userID, id); err != nil {
		return err
	}
	err := s.index.Delete(ctx, id)
	s.metrics.Upstream("pinecone", err)
	if err != nil {
		s.log.WithError(err).WithField("resource_id", id).Warn("vector delete failed")
	}
	return nil
}

// EmbeddingText is the text a resource is embedded from.
func EmbeddingText(r *models.Resource) string {
	parts := []string{"Title: " + r.Title, "Type: " + r.Type}
	if r.Content != "" {
		parts = append(parts, "Content: "+r.Content)
	}
	if r.URL != "" {
		parts = append(parts, "URL: "+r.URL)
	}
	if len(r.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(r.Tags, ", "))
	}
	return strings.Join(parts, "\n")
}

// Metadata is the denormalised copy of r kept alongside its vector.
func Metadata(r *models.Resource) map[string]any {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"userId":     r.UserID,
		"resourceId": r.ID,
		"type":       r.Type,
		"title":      r.Title,
		"tags":       tags,
		"url":        r.URL,
		"content":    r.Content,
	}
}
