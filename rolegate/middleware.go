package rolegate

import (
	"context"
	"net/http"

	"github.com/evently/authsession/httpauth"
	"github.com/evently/authsession/session"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// ContextKeySession stores the resolved session for downstream handlers.
const ContextKeySession ContextKey = "session"

// SessionFromContext returns the session installed by Middleware, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(ContextKeySession).(*session.Session)
	return sess
}

// Middleware gates server-rendered routes. Server-side resolution is always
// "resolved" (the cookie read is synchronous), so the gate never renders a
// pending state here: unauthenticated callers go to login with the original
// path preserved, authenticated-but-unauthorized callers go to the generic
// landing, and authorized callers reach the handler with the session in
// context.
func Middleware(f *httpauth.Factory, req Requirement, routes RouteMap) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := f.ReadScope(r).Session(r.Context())
			if err != nil {
				http.Error(w, "session resolution failed", http.StatusInternalServerError)
				return
			}

			decision := Evaluate(true, sess, req, r.URL.RequestURI(), routes)
			if decision.State != StateAuthorized {
				http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
