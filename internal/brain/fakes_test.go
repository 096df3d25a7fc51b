package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/llm"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
	"github.com/ayush/notsodumb/backend/internal/vector"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memStore struct {
	tags      map[string][]models.Tag
	resources map[string]models.Resource
	seq       int
}

func newMemStore() *memStore {
	return &memStore{tags: map[string][]models.Tag{}, resources: map[string]models.Resource{}}
}

func (m *memStore) next() string {
	m.seq++
	return fmt.Sprintf("id-%d", m.seq)
}

func (m *memStore) FindTag(_ context.Context, userID, name string) (*models.Tag, error) {
	for _, t := range m.tags[userID] {
		if t.Name == name {
			t := t
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CountTags(_ context.Context, userID string) (int, error) {
	return len(m.tags[userID]), nil
}

func (m *memStore) CreateTag(_ context.Context, userID, name string) (*models.Tag, error) {
	t := models.Tag{ID: m.next(), UserID: userID, Name: name}
	m.tags[userID] = append(m.tags[userID], t)
	return &t, nil
}

func (m *memStore) ListTags(_ context.Context, userID, q string) ([]models.Tag, error) {
	var out []models.Tag
	for _, t := range m.tags[userID] {
		if strings.Contains(t.Name, q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) CreateResource(ctx context.Context, r *models.Resource) (*models.Resource, error) {
	for _, name := range r.Tags {
		if _, err := m.FindTag(ctx, r.UserID, name); err != nil {
			_, _ = m.CreateTag(ctx, r.UserID, name)
		}
	}
	out := *r
	out.ID = m.next()
	out.CreatedAt = time.Now()
	m.resources[out.ID] = out
	return &out, nil
}

func (m *memStore) ListResources(_ context.Context, userID string) ([]models.Resource, error) {
	var out []models.Resource
	for _, r := range m.resources {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetResource(_ context.Context, userID, id string) (*models.Resource, error) {
	r, ok := m.resources[id]
	if !ok || r.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) DeleteResource(_ context.Context, userID, id string) error {
	r, ok := m.resources[id]
	if !ok || r.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.resources, id)
	return nil
}

type fakeEmbedder struct {
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type fakeIndex struct {
	vectors map[string]vector.Vector
	matches []vector.Match
	filter  map[string]any
	topK    int
	err     error
}

func newFakeIndex() *fakeIndex { return &fakeIndex{vectors: map[string]vector.Vector{}} }

func (f *fakeIndex) Upsert(_ context.Context, vs []vector.Vector) error {
	if f.err != nil {
		return f.err
	}
	for _, v := range vs {
		f.vectors[v.ID] = v
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int, filter map[string]any) ([]vector.Match, error) {
	f.topK, f.filter = topK, filter
	return f.matches, f.err
}

func (f *fakeIndex) Delete(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(f.vectors, id)
	}
	return nil
}

type fakeCompleter struct {
	answer string
	reqs   []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.answer == "" {
		return "", errors.New("no answer")
	}
	return f.answer, nil
}
