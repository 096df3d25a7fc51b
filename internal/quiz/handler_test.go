package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/notsodumb/backend/internal/auth"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
)

type memQuizzes struct {
	byID map[string]*models.Quiz
}

func newMemQuizzes() *memQuizzes { return &memQuizzes{byID: map[string]*models.Quiz{}} }

func (m *memQuizzes) Insert(_ context.Context, q *models.Quiz) (string, error) {
	q.ShareID = "quiz-1"
	m.byID[q.ShareID] = q
	return q.ShareID, nil
}

func (m *memQuizzes) GetByID(_ context.Context, id string) (*models.Quiz, error) {
	q, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return q, nil
}

func (m *memQuizzes) ListByUser(_ context.Context, userID string) ([]models.Quiz, error) {
	var out []models.Quiz
	for _, q := range m.byID {
		if q.UserID == userID {
			out = append(out, *q)
		}
	}
	return out, nil
}

type staticMaterial struct {
	text string
	err  error
}

func (s staticMaterial) Material(context.Context, models.QuizConfig) (string, error) {
	return s.text, s.err
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/quiz", h.Create)
	r.Get("/api/quiz", h.List)
	r.Get("/api/quiz/{id}", h.Get)
	r.Post("/api/quiz/{id}/score", h.Score)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(auth.UserIDHeader, "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const createBody = `{"config":{"topic":"Rust","difficulty":"easy","numQuestions":4},"share":%s}`

func TestCreateAndShareQuiz(t *testing.T) {
	quizzes := newMemQuizzes()
	h := NewHandler(quizzes, staticMaterial{}, NewGenerator(&fakeCompleter{out: vendorQuiz(4)}), nil, quietLogger())
	router := newTestRouter(h)

	w := do(t, router, http.MethodPost, "/api/quiz", strings.Replace(createBody, "%s", "true", 1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Quiz
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "quiz-1", created.ShareID)
	assert.Len(t, created.Questions, 4)
	assert.Equal(t, "user-1", quizzes.byID["quiz-1"].UserID)

	w = do(t, router, http.MethodGet, "/api/quiz/quiz-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/quiz", "")
	var list []models.Quiz
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 1)

	w = do(t, router, http.MethodPost, "/api/quiz/quiz-1/score", `{"answers":{"1":"b","2":"a"},"timeTakenSeconds":30}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.QuizResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 30, res.TimeTakenSeconds)
}

func TestCreateWithoutShareIsNotStored(t *testing.T) {
	quizzes := newMemQuizzes()
	h := NewHandler(quizzes, staticMaterial{}, NewGenerator(&fakeCompleter{out: vendorQuiz(4)}), nil, quietLogger())

	w := do(t, newTestRouter(h), http.MethodPost, "/api/quiz", strings.Replace(createBody, "%s", "false", 1))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, quizzes.byID)
}

func TestCreateInvalidFormat(t *testing.T) {
	h := NewHandler(newMemQuizzes(), staticMaterial{}, NewGenerator(&fakeCompleter{out: vendorQuiz(3)}), nil, quietLogger())

	w := do(t, newTestRouter(h), http.MethodPost, "/api/quiz", strings.Replace(createBody, "%s", "false", 1))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Invalid quiz format"}`, w.Body.String())
}

func TestCreateErrors(t *testing.T) {
	gen := NewGenerator(&fakeCompleter{out: vendorQuiz(4)})
	cases := []struct {
		name     string
		material MaterialSource
		body     string
		want     int
	}{
		{"missing difficulty", staticMaterial{}, `{"config":{"topic":"Rust","numQuestions":4}}`, http.StatusBadRequest},
		{"too many questions", staticMaterial{}, `{"config":{"topic":"Rust","difficulty":"easy","numQuestions":21}}`, http.StatusBadRequest},
		{"blank topic", staticMaterial{}, `{"config":{"topic":"  ","difficulty":"easy","numQuestions":4}}`, http.StatusBadRequest},
		{"bad source", staticMaterial{err: ErrInvalidSource}, `{"config":{"difficulty":"easy","numQuestions":4,"sourceType":"url","source":"x"}}`, http.StatusBadRequest},
		{"source down", staticMaterial{err: errors.New("dial tcp")}, `{"config":{"difficulty":"easy","numQuestions":4,"sourceType":"youtube","source":"x"}}`, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(newMemQuizzes(), tc.material, gen, nil, quietLogger())
			w := do(t, newTestRouter(h), http.MethodPost, "/api/quiz", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestGetAndScoreUnknownQuiz(t *testing.T) {
	h := NewHandler(newMemQuizzes(), staticMaterial{}, NewGenerator(&fakeCompleter{}), nil, quietLogger())
	router := newTestRouter(h)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/quiz/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPost, "/api/quiz/nope/score", `{"answers":{}}`).Code)
}

func TestScoreRejectsUnknownQuestion(t *testing.T) {
	quizzes := newMemQuizzes()
	_, _ = quizzes.Insert(context.Background(), sampleQuiz("a", "b"))
	h := NewHandler(quizzes, staticMaterial{}, NewGenerator(&fakeCompleter{}), nil, quietLogger())

	w := do(t, newTestRouter(h), http.MethodPost, "/api/quiz/quiz-1/score", `{"answers":{"7":"a"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
