// Package csrf implements double-submit CSRF protection: the session's
// CSRF secret is mirrored into a cookie the frontend can read, and
// every state-changing request must echo it back in a header.
package csrf

import (
	"crypto/subtle"
	"net/http"

	"github.com/nousware/authkit/core"
	"github.com/nousware/authkit/session"
)

const (
	// CookieName is readable by frontend JavaScript on purpose; the
	// cookie is the delivery channel, not a secret from the page.
	CookieName = "XSRF-TOKEN"

	// HeaderName is where the frontend echoes the cookie value.
	HeaderName = "X-XSRF-TOKEN"
)

// ErrMismatch is returned as a 403 when the header is missing or does
// not match the session's secret.
var ErrMismatch = core.NewHTTPError(http.StatusForbidden, "csrf_mismatch")

type protector struct {
	secure bool
	exempt map[string]struct{}
}

// Option configures the middleware.
type Option func(*protector)

// WithSecure marks the mirror cookie Secure.
func WithSecure(secure bool) Option {
	return func(p *protector) { p.secure = secure }
}

// WithExemptPaths disables the header check for exact request paths,
// for endpoints driven by provider redirects rather than the frontend.
func WithExemptPaths(paths ...string) Option {
	return func(p *protector) {
		for _, path := range paths {
			p.exempt[path] = struct{}{}
		}
	}
}

// Middleware mirrors the session CSRF secret and enforces the header
// check on unsafe methods. It must run after the session middleware.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	p := &protector{exempt: make(map[string]struct{})}
	for _, opt := range opts {
		opt(p)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok {
				core.Render(w, r, core.JSONError(core.ErrInternalServerError))
				return
			}

			p.mirror(w, r, sess)

			if !safeMethod(r.Method) {
				if _, exempt := p.exempt[r.URL.Path]; !exempt && !tokenMatches(r, sess) {
					core.Render(w, r, core.JSONError(ErrMismatch))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// mirror keeps the readable cookie in sync with the session secret.
func (p *protector) mirror(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value == sess.CSRFToken {
		return
	}
	SetCookie(w, sess.CSRFToken, p.secure)
}

// SetCookie writes the readable mirror cookie. The middleware calls it
// on the way in; the session manager calls it again when login rotates
// the secret mid-request, so the login response already carries the
// value the next unsafe request must echo.
func SetCookie(w http.ResponseWriter, secret string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    secret,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}

func tokenMatches(r *http.Request, sess *session.Session) bool {
	header := r.Header.Get(HeaderName)
	if header == "" || sess.CSRFToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(sess.CSRFToken)) == 1
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
