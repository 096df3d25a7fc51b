// Package brain implements the second brain: user-owned links and notes, their
// tags, and question answering over them through a vector index.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
)

// ErrTagLimit is returned when a new tag would exceed the per-user cap.
var ErrTagLimit = errors.New("tag limit reached")

// ErrTagName is returned for a blank tag name.
var ErrTagName = errors.New("name is required")

// TagStore is satisfied by *store.PostgresStore.
type TagStore interface {
	FindTag(ctx context.Context, userID, name string) (*models.Tag, error)
	CountTags(ctx context.Context, userID string) (int, error)
	CreateTag(ctx context.Context, userID, name string) (*models.Tag, error)
	ListTags(ctx context.Context, userID, q string) ([]models.Tag, error)
}

// Tags enforces the per-user tag cap on top of a TagStore.
type Tags struct {
	store TagStore
	limit int
}

func NewTags(s TagStore, limit int) *Tags {
	return &Tags{store: s, limit: limit}
}

// NormalizeTag trims and lower-cases a tag name.
func NormalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Ensure returns the caller's tag called name, creating it if the cap allows.
// created reports whether a new tag was stored.
func (t *Tags) Ensure(ctx context.Context, userID, name string) (tag *models.Tag, created bool, err error) {
	name = NormalizeTag(name)
	if name == "" {
		return nil, false, ErrTagName
	}

	tag, err = t.store.FindTag(ctx, userID, name)
	if err == nil {
		return tag, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("find tag: %w", err)
	}

	n, err := t.store.CountTags(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("count tags: %w", err)
	}
	if n >= t.limit {
		return nil, false, ErrTagLimit
	}

	tag, err = t.store.CreateTag(ctx, userID, name)
	if err != nil {
		return nil, false, err
	}
	return tag, true, nil
}

// Admit checks that names, already normalised and distinct, fit under the
// cap together. It stores nothing.
func (t *Tags) Admit(ctx context.Context, userID string, names []string) error {
	missing := 0
	for _, name := range names {
		_, err := t.store.FindTag(ctx, userID, name)
		if errors.Is(err, store.ErrNotFound) {
			missing++
			continue
		}
		if err != nil {
			return fmt.Errorf("find tag: %w", err)
		}
	}
	if missing == 0 {
		return nil
	}
	n, err := t.store.CountTags(ctx, userID)
	if err != nil {
		return fmt.Errorf("count tags: %w", err)
	}
	if n+missing > t.limit {
		return ErrTagLimit
	}
	return nil
}

// List returns the caller's tags containing q.
func (t *Tags) List(ctx context.Context, userID, q string) ([]models.Tag, error) {
	tags, err := t.store.ListTags(ctx, userID, NormalizeTag(q))
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}
