package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ringforge/callgate/pkg/auth"
	"github.com/ringforge/callgate/pkg/httputil"
	"github.com/ringforge/callgate/pkg/observability"
)

// SessionMiddleware resolves bearer tokens into account identities
type SessionMiddleware struct {
	sessions *auth.SessionStore
	optional bool // If true, allow requests without a session
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(sessions *auth.SessionStore, optional bool) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with session resolution. The resolved
// account ID is placed on the request context.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		accountID, err := m.sessions.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionNotFound) {
				httputil.WriteUnauthorized(w, "invalid or expired session")
				return
			}
			httputil.WriteInternalError(w, err)
			return
		}

		ctx := observability.WithAccountID(r.Context(), accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
