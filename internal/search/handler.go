package search

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/httpx"
	"github.com/ayush/notsodumb/backend/internal/metrics"
	"github.com/ayush/notsodumb/backend/internal/models"
)

// Searcher is satisfied by *Client.
type Searcher interface {
	Search(ctx context.Context, req Request) (*models.SearchResponse, error)
}

// Handler serves POST /api/search.
type Handler struct {
	searcher Searcher
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

func NewHandler(s Searcher, m *metrics.Metrics, log logrus.FieldLogger) *Handler {
	return &Handler{searcher: s, metrics: m, log: log}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.searcher.Search(r.Context(), Request{
		Query:                    req.Query,
		IncludeImages:            req.IncludeImages,
		IncludeImageDescriptions: req.IncludeImageDescriptions,
	})
	h.metrics.Upstream("tavily", err)
	if err != nil {
		h.log.WithError(err).Error("search")
		httpx.Error(w, http.StatusInternalServerError, "Failed to perform search")
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}
