package brain

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/auth"
	"github.com/ayush/notsodumb/backend/internal/httpx"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
)

// Handler holds the resource, tag and brain-chat HTTP handlers.
type Handler struct {
	resources *Resources
	tags      *Tags
	retriever *Retriever
	log       logrus.FieldLogger
}

func NewHandler(resources *Resources, tags *Tags, retriever *Retriever, log logrus.FieldLogger) *Handler {
	return &Handler{resources: resources, tags: tags, retriever: retriever, log: log}
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req models.CreateResourceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.resources.Create(r.Context(), auth.UserID(r), req)
	switch {
	case errors.Is(err, ErrTagLimit):
		httpx.Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.WithError(err).Error("create resource")
		httpx.Error(w, http.StatusInternalServerError, "failed to create resource")
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	out, err := h.resources.List(r.Context(), auth.UserID(r))
	if err != nil {
		h.log.WithError(err).Error("list resources")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.resources.Get(r.Context(), auth.UserID(r), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("get resource")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	err := h.resources.Delete(r.Context(), auth.UserID(r), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("delete resource")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTag returns the existing tag (200) or a new one (201).
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTagRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	tag, created, err := h.tags.Ensure(r.Context(), auth.UserID(r), req.Name)
	switch {
	case errors.Is(err, ErrTagName):
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrTagLimit):
		httpx.Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.WithError(err).Error("create tag")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, tag)
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context(), auth.UserID(r), r.URL.Query().Get("q"))
	if err != nil {
		h.log.WithError(err).Error("list tags")
		httpx.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	httpx.JSON(w, http.StatusOK, tags)
}

// Chat answers a question over the caller's resources.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.BrainChatRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.retriever.Ask(r.Context(), auth.UserID(r), req.Query, req.ResourceID)
	if err != nil {
		h.log.WithError(err).Error("brain chat")
		httpx.Error(w, http.StatusInternalServerError, "Failed to process brain chat request")
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}
