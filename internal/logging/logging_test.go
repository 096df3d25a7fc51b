package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "notsodumb", "debug", "json")

	log.WithField("k", "v").Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "notsodumb", line["service"])
	assert.Equal(t, "v", line["k"])
}

func TestNewDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "svc", "bogus", "json")

	log.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestRequestsLogsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "svc", "info", "json")

	r := chi.NewRouter()
	r.Use(Requests(log))
	r.Get("/quiz/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quiz/abc", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/quiz/{id}", line["route"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
}
