package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/tradelink-app/tradelink-api/models"
	"github.com/tradelink-app/tradelink-api/sessions"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionMiddleware guards the authenticated consumer endpoints.
type SessionMiddleware struct {
	Sessions *sessions.Store
}

// Require rejects requests without a valid authenticated session, and
// rejects admin sessions outright: admins never use the consumer surface.
func (m SessionMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		s, err := m.Sessions.FromRequest(r)
		if err != nil || !s.Authenticated() {
			zap.S().Debugw("unauthorized", "url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		if s.Role == string(models.RoleAdmin) {
			zap.S().Warnw("admin session on consumer endpoint", "url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
	})
}

// Attach loads the session when one exists but does not require it. Used by
// the anonymous registration and social endpoints, which manage their own
// session lifecycle.
func (m SessionMiddleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s, err := m.Sessions.FromRequest(r); err == nil {
			r = r.WithContext(withSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

func withSession(ctx context.Context, s *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFrom returns the session attached to the request context, or nil.
func SessionFrom(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(sessionContextKey).(*sessions.Session)
	return s
}
