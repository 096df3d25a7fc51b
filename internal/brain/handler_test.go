package brain

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/notsodumb/backend/internal/auth"
	"github.com/ayush/notsodumb/backend/internal/models"
)

func newTestRouter() (http.Handler, *memStore, *fakeIndex) {
	s := newMemStore()
	index := newFakeIndex()
	tags := NewTags(s, 5)
	h := NewHandler(
		NewResources(s, tags, &fakeEmbedder{}, index, nil, quietLogger()),
		tags,
		NewRetriever(&fakeEmbedder{}, index, &fakeCompleter{answer: "ok"}, nil, quietLogger()),
		quietLogger(),
	)

	r := chi.NewRouter()
	r.Post("/api/resources", h.CreateResource)
	r.Get("/api/resources", h.ListResources)
	r.Get("/api/resources/{id}", h.GetResource)
	r.Delete("/api/resources/{id}", h.DeleteResource)
	r.Post("/api/tags", h.CreateTag)
	r.Get("/api/tags", h.ListTags)
	r.Post("/api/brain-chat", h.Chat)
	return r, s, index
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(auth.UserIDHeader, "u1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestResourceRoutes(t *testing.T) {
	router, _, _ := newTestRouter()

	w := do(router, http.MethodPost, "/api/resources", `{"title":"Book","url":"https://doc.rust-lang.org/book/","tags":["rust"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Resource
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "u1", created.UserID)

	w = do(router, http.MethodGet, "/api/resources", "")
	var list []models.Resource
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/resources/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodDelete, "/api/resources/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/resources/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodDelete, "/api/resources/"+created.ID, "").Code)
}

func TestCreateResourceValidation(t *testing.T) {
	router, _, _ := newTestRouter()
	for _, body := range []string{
		`{}`,
		`{"title":"x","url":"not a url"}`,
		`{"title":"x","tags":["1","2","3","4","5","6"]}`,
		`{"title":"x","type":"video"}`,
	} {
		assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/api/resources", body).Code, body)
	}
}

func TestTagRoutes(t *testing.T) {
	router, s, _ := newTestRouter()

	assert.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/api/tags", `{"name":"rust"}`).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/api/tags", `{"name":"Rust"}`).Code)
	for _, n := range []string{"a", "b", "c", "d"} {
		require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/api/tags", `{"name":"`+n+`"}`).Code)
	}

	w := do(router, http.MethodPost, "/api/tags", `{"name":"sixth"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"tag limit reached"}`, w.Body.String())
	assert.Len(t, s.tags["u1"], 5)

	w = do(router, http.MethodGet, "/api/tags?q=ru", "")
	assert.JSONEq(t, `[{"id":"id-1","name":"rust"}]`, w.Body.String())
}

func TestBrainChatRoute(t *testing.T) {
	router, _, _ := newTestRouter()

	w := do(router, http.MethodPost, "/api/brain-chat", `{"query":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"ok","sources":[]}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/api/brain-chat", `{}`).Code)
}
