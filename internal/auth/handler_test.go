package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/notsodumb/backend/internal/models"
)

func newTestHandler(t *testing.T) (*Handler, *SessionStore) {
	t.Helper()
	sessions, _ := newTestSessions(t)
	mem := newMemStore()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewHandler(mem, sessions, NewWalletService(mem, mem), log), sessions
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body["error"]
}

func TestRegisterAndLogin(t *testing.T) {
	h, sessions := newTestHandler(t)

	w := post(h.Register, `{"username":"ada","email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "correct horse")

	w = post(h.Login, `{"email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ada", resp.User.Username)

	userID, err := sessions.Get(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	w := post(h.Register, `{"username":"ada","email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password is required", errorOf(t, w))
}

func TestLoginBadCredentials(t *testing.T) {
	h, _ := newTestHandler(t)
	post(h.Register, `{"username":"ada","email":"ada@example.com","password":"correct horse"}`)

	for _, body := range []string{
		`{"email":"ada@example.com","password":"wrong password"}`,
		`{"email":"nobody@example.com","password":"correct horse"}`,
	} {
		w := post(h.Login, body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid credentials", errorOf(t, w))
	}
}

func TestMe(t *testing.T) {
	h, _ := newTestHandler(t)
	w := post(h.Register, `{"username":"ada","email":"ada@example.com","password":"correct horse"}`)
	var user models.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&user))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, user.ID)
	w = httptest.NewRecorder()
	h.Me(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWalletFlow(t *testing.T) {
	h, sessions := newTestHandler(t)
	addr, priv := newWallet(t)

	w := post(h.Challenge, `{"walletAddress":"`+addr+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var ch map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ch))

	sig := ed25519.Sign(priv, []byte(ch["challenge"]))
	body, err := json.Marshal(map[string]any{
		"walletAddress": addr,
		"challenge":     ch["challenge"],
		"signature":     toInts(sig),
	})
	require.NoError(t, err)

	w = post(h.Verify, string(body))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, addr, resp.User.WalletAddress)

	userID, err := sessions.Get(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)

	w = post(h.Verify, string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid or expired challenge", errorOf(t, w))
}

func TestWalletVerifyErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	addr, _ := newWallet(t)
	_, otherPriv := newWallet(t)

	w := post(h.Challenge, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h.Challenge, `{"walletAddress":"`+addr+`"}`)
	var ch map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ch))

	w = post(h.Verify, `{"walletAddress":"`+addr+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrMissingFields.Error(), errorOf(t, w))

	bad, _ := json.Marshal(map[string]any{
		"walletAddress": addr,
		"challenge":     ch["challenge"],
		"signature":     toInts(ed25519.Sign(otherPriv, []byte(ch["challenge"]))),
	})
	w = post(h.Verify, string(bad))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid signature", errorOf(t, w))

	w = post(h.Verify, `{"walletAddress":"`+addr+`","challenge":"c","signature":[300]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid signature", errorOf(t, w))
}

func TestLogoutDeletesSession(t *testing.T) {
	h, sessions := newTestHandler(t)
	token, err := sessions.Create(context.Background(), "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.Logout(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := sessions.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
