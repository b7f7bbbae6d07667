package middleware

import (
	"context"
	"net/http"

	"github.com/go-marketplace-auth/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionResolver resolves the caller's session from request headers
// (Bearer token or session cookie).
type SessionResolver interface {
	GetSession(ctx context.Context, header http.Header) (*domain.AuthSession, error)
}

// Auth rejects requests without an active session and injects the session into context.
func Auth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := resolver.GetSession(r.Context(), r.Header)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession stores an authenticated session in ctx.
func WithSession(ctx context.Context, s *domain.AuthSession) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext extracts the authenticated session from the request context.
func SessionFromContext(ctx context.Context) (*domain.AuthSession, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.AuthSession)
	return s, ok && s != nil
}
