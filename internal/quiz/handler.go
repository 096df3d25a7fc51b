package quiz

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/auth"
	"github.com/ayush/notsodumb/backend/internal/httpx"
	"github.com/ayush/notsodumb/backend/internal/metrics"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
)

// QuizStore defines the interface for shared quiz persistence.
type QuizStore interface {
	Insert(ctx context.Context, q *models.Quiz) (string, error)
	GetByID(ctx context.Context, id string) (*models.Quiz, error)
	ListByUser(ctx context.Context, userID string) ([]models.Quiz, error)
}

// MaterialSource is satisfied by *Sources.
type MaterialSource interface {
	Material(ctx context.Context, cfg models.QuizConfig) (string, error)
}

// Handler holds quiz HTTP handlers.
type Handler struct {
	quizzes   QuizStore
	sources   MaterialSource
	generator *Generator
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

func NewHandler(quizzes QuizStore, sources MaterialSource, gen *Generator, m *metrics.Metrics, log logrus.FieldLogger) *Handler {
	return &Handler{quizzes: quizzes, sources: sources, generator: gen, metrics: m, log: log}
}

// Create generates a quiz and, when asked, stores it for sharing.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.QuizRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := req.Config
	cfg.Topic = strings.TrimSpace(cfg.Topic)
	if (cfg.SourceType == "" || cfg.SourceType == "topic") && cfg.Topic == "" {
		httpx.Error(w, http.StatusBadRequest, "topic is required")
		return
	}

	material, err := h.sources.Material(r.Context(), cfg)
	switch {
	case errors.Is(err, ErrSourceRequired), errors.Is(err, ErrInvalidSource), errors.Is(err, ErrNoMaterial):
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.WithError(err).WithField("source_type", cfg.SourceType).Error("quiz source")
		httpx.Error(w, http.StatusInternalServerError, "Failed to fetch source material")
		return
	}

	q, err := h.generator.Generate(r.Context(), cfg, material)
	h.metrics.Upstream("openai", err)
	switch {
	case errors.Is(err, ErrInvalidFormat):
		h.log.WithError(err).Warn("quiz format")
		httpx.Error(w, http.StatusInternalServerError, ErrInvalidFormat.Error())
		return
	case err != nil:
		h.log.WithError(err).Error("quiz generation")
		httpx.Error(w, http.StatusInternalServerError, "Failed to generate quiz")
		return
	}

	if req.Share {
		q.UserID = auth.UserID(r)
		if _, err := h.quizzes.Insert(r.Context(), q); err != nil {
			h.log.WithError(err).Error("quiz insert")
			httpx.Error(w, http.StatusInternalServerError, "failed to save quiz")
			return
		}
		httpx.JSON(w, http.StatusCreated, q)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Get returns a shared quiz.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.quizzes.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("quiz get")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// List returns the caller's shared quizzes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.ListByUser(r.Context(), auth.UserID(r))
	if err != nil {
		h.log.WithError(err).Error("quiz list")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}
	httpx.JSON(w, http.StatusOK, quizzes)
}

// Score grades a finished attempt against a shared quiz.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req models.ScoreRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := h.quizzes.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("quiz get")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	res, err := Replay(q, req.Answers, time.Duration(req.TimeTakenSeconds)*time.Second)
	switch {
	case errors.Is(err, ErrUnknownQuestion), errors.Is(err, ErrUnknownOption):
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.WithError(err).Error("quiz score")
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
