package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/auth"
	"github.com/ayush/notsodumb/backend/internal/httpx"
)

// ProtectedPrefixes are the path prefixes that require a valid session.
var ProtectedPrefixes = []string{
	"/api/auth/me",
	"/api/chat",
	"/api/search",
	"/api/research",
	"/api/resources",
	"/api/tags",
	"/api/brain-chat",
	"/api/quiz",
	"/dashboard",
	"/second-brain",
}

// isPublic lists the exceptions under a protected prefix.
func isPublic(r *http.Request) bool {
	// Shared quizzes are readable by anyone holding the link.
	return r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/quiz/") &&
		strings.Count(strings.Trim(r.URL.Path, "/"), "/") == 2
}

// SessionLookup resolves a session token to a user id ("" when unknown).
type SessionLookup interface {
	Get(ctx context.Context, token string) (string, error)
}

// Authenticate validates the bearer header or token cookie and injects the
// user id header. Requests outside prefixes pass through, minus any
// client-supplied user id header.
func Authenticate(sessions SessionLookup, prefixes []string, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(auth.UserIDHeader)

			if token := auth.TokenFromRequest(r); token != "" {
				userID, err := sessions.Get(r.Context(), token)
				if err != nil {
					log.WithError(err).Warn("session lookup")
				}
				if userID != "" {
					r.Header.Set(auth.UserIDHeader, userID)
					next.ServeHTTP(w, r)
					return
				}
			}

			if !protected(r.URL.Path, prefixes) || isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			if strings.Contains(r.Header.Get("Accept"), "text/html") {
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
				return
			}
			httpx.Error(w, http.StatusUnauthorized, "not authenticated")
		})
	}
}

func protected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
