package auth

import (
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated user id to downstream handlers. It
// is only trusted because the auth middleware strips it from inbound requests.
const UserIDHeader = "X-User-Id"

// TokenFromRequest returns the bearer token, falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// UserID returns the authenticated user id injected by the middleware.
func UserID(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}
