package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/nousware/authkit/authgate"
	"github.com/nousware/authkit/core"
	"github.com/nousware/authkit/identity"
	"github.com/nousware/authkit/session"
)

// PrincipalSource resolves the current account state for a logged-in
// identity, so role checks see revocations made after login.
type PrincipalSource interface {
	PrincipalByID(ctx context.Context, id int64) (authgate.Principal, error)
}

var (
	errUnauthorized = core.NewHTTPError(http.StatusUnauthorized, "authentication_required")
	errForbidden    = core.NewHTTPError(http.StatusForbidden, "insufficient_role")
)

type principalKey struct{}

// WithPrincipal stores the resolved principal in the context.
func WithPrincipal(ctx context.Context, p authgate.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal resolved by Middleware.
// Only present on requests that passed an authenticated rule.
func PrincipalFromContext(ctx context.Context) (authgate.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(authgate.Principal)
	return p, ok
}

// Middleware enforces the table. It must run after the session
// middleware. On authenticated routes the principal is reloaded from
// the store and placed in the context for handlers.
func Middleware(table Table, source PrincipalSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := table.Match(r.Method, r.URL.Path)
			if access.kind == accessPublic {
				next.ServeHTTP(w, r)
				return
			}

			sess, ok := session.FromContext(r.Context())
			if !ok || !sess.IsAuthenticated() {
				core.Render(w, r, core.JSONError(errUnauthorized))
				return
			}

			p, err := source.PrincipalByID(r.Context(), sess.IdentityID)
			if err != nil {
				// A session outliving its account is a stale login, not
				// a server fault.
				if errors.Is(err, identity.ErrNotFound) {
					core.Render(w, r, core.JSONError(errUnauthorized))
					return
				}
				core.Render(w, r, core.JSONError(err))
				return
			}

			if access.kind == accessRole && !p.HasRole(access.role) {
				core.Render(w, r, core.JSONError(errForbidden))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
