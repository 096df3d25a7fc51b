package research

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/auth"
	"github.com/ayush/notsodumb/backend/internal/httpx"
	"github.com/ayush/notsodumb/backend/internal/metrics"
	"github.com/ayush/notsodumb/backend/internal/models"
)

// Handler holds the chat proxy and research HTTP handlers.
type Handler struct {
	vendor   VendorStreamer
	model    string
	searcher Searcher
	metrics  *metrics.Metrics
	log      logrus.FieldLogger

	mu            sync.Mutex
	orchestrators map[string]*userTurns
	idleTTL       time.Duration
	now           func() time.Time
}

// IdleTTL is how long a user's research history is kept after their last request.
const IdleTTL = 30 * time.Minute

type userTurns struct {
	orch     *Orchestrator
	lastUsed time.Time
}

func NewHandler(vendor VendorStreamer, model string, searcher Searcher, m *metrics.Metrics, log logrus.FieldLogger) *Handler {
	return &Handler{
		vendor:        vendor,
		model:         model,
		searcher:      searcher,
		metrics:       m,
		log:           log,
		orchestrators: make(map[string]*userTurns),
		idleTTL:       IdleTTL,
		now:           time.Now,
	}
}

// Chat forwards messages to the model and streams the vendor chunks back as NDJSON.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	upstream, err := h.vendor.Stream(r.Context(), h.model, req.Messages)
	h.metrics.Upstream("openai", err)
	if err != nil {
		h.log.WithError(err).Error("chat stream")
		httpx.Error(w, http.StatusInternalServerError, "Failed to process chat request")
		return
	}
	defer upstream.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	n, err := Reframe(w, upstream, h.log)
	if err != nil && r.Context().Err() == nil {
		h.log.WithError(err).WithField("chunks", n).Warn("chat stream ended early")
	}
}

// Research runs a research turn for the caller and streams section snapshots
// as NDJSON. A newer research request from the same user aborts this one.
func (h *Handler) Research(w http.ResponseWriter, r *http.Request) {
	var req models.ResearchRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	orch := h.orchestrator(auth.UserID(r))

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	err := orch.Submit(r.Context(), req.Query, func(s models.ChatSection) {
		if err := enc.Encode(s); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	})
	switch {
	case err == nil, errors.Is(err, ErrAborted), errors.Is(err, ErrNoResults):
	default:
		h.log.WithError(err).Warn("research turn failed")
	}
}

// History returns the caller's research sections.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.orchestrator(auth.UserID(r)).Sections())
}

func (h *Handler) orchestrator(userID string) *Orchestrator {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	for id, u := range h.orchestrators {
		if id != userID && now.Sub(u.lastUsed) > h.idleTTL && !u.orch.Busy() {
			delete(h.orchestrators, id)
		}
	}

	u, ok := h.orchestrators[userID]
	if !ok {
		u = &userTurns{orch: NewOrchestrator(
			h.searcher,
			NDJSONStreamer{Vendor: h.vendor, Model: h.model, Log: h.log},
			h.log.WithField("user_id", userID),
		)}
		u.orch.metrics = h.metrics
		h.orchestrators[userID] = u
	}
	u.lastUsed = now
	return u.orch
}
