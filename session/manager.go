package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nousware/authkit/pkg/cookie"
	"github.com/nousware/authkit/pkg/logger"
)

// Manager binds sessions to browsers through a signed cookie and
// enforces token rotation on privilege changes.
type Manager struct {
	store      Store
	cookies    *cookie.Manager
	cookieName string
	ttl        time.Duration
	secure     bool
	onRotate   func(http.ResponseWriter, *Session)
	logger     *slog.Logger
}

type ManagerOption func(*Manager)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) { m.cookieName = name }
}

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithSecureCookies marks the session cookie Secure. Enable everywhere
// except plain-HTTP local development.
func WithSecureCookies(secure bool) ManagerOption {
	return func(m *Manager) { m.secure = secure }
}

// WithRotationHook registers a callback run after Authenticate rotates
// the session, while the response headers are still open. The CSRF
// layer uses it to refresh its mirror cookie in the same response.
func WithRotationHook(fn func(http.ResponseWriter, *Session)) ManagerOption {
	return func(m *Manager) { m.onRotate = fn }
}

// WithManagerLogger sets a custom logger.
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = log }
}

// NewManager creates a Manager over the given store and cookie signer.
func NewManager(store Store, cookies *cookie.Manager, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		cookies:    cookies,
		cookieName: "sid",
		ttl:        24 * time.Hour,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookieName }

// Load returns the live session referenced by the request cookie, or
// nil when there is none. A tampered or stale cookie is treated the
// same as no cookie.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	token, err := m.cookies.GetSigned(r, m.cookieName)
	if err != nil {
		return nil, nil
	}

	sess, err := m.store.GetByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// Ensure returns the request's session, creating and persisting an
// anonymous one when the request carries none.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (*Session, error) {
	sess, err := m.Load(r)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	sess, err = New(m.ttl)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(r.Context(), sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.writeCookie(w, sess)
	return sess, nil
}

// Authenticate binds an identity to the request's session. The session
// token and CSRF secret are rotated and the old token retired, so a
// cookie captured before login cannot ride the authenticated session.
func (m *Manager) Authenticate(w http.ResponseWriter, r *http.Request, identityID int64) (*Session, error) {
	old, err := m.Load(r)
	if err != nil {
		return nil, err
	}

	sess, err := New(m.ttl)
	if err != nil {
		return nil, err
	}
	sess.IdentityID = identityID
	if old != nil {
		sess.ID = old.ID
		sess.CreatedAt = old.CreatedAt
	}

	if err := m.store.Save(r.Context(), sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if old != nil {
		if err := m.store.Delete(r.Context(), old.Token); err != nil {
			m.logger.Warn("retire pre-login session",
				logger.Error(err),
				logger.Component("session"),
			)
		}
	}

	m.writeCookie(w, sess)
	if m.onRotate != nil {
		m.onRotate(w, sess)
	}
	return sess, nil
}

// Logout destroys the request's session and expires its cookie. Safe to
// call without a live session.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	token, err := m.cookies.GetSigned(r, m.cookieName)
	if err == nil {
		if err := m.store.Delete(r.Context(), token); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	m.cookies.Delete(w, m.cookieName)
	return nil
}

func (m *Manager) writeCookie(w http.ResponseWriter, sess *Session) {
	m.cookies.SetSigned(w, m.cookieName, sess.Token,
		cookie.WithPath("/"),
		cookie.WithHTTPOnly(true),
		cookie.WithSecure(m.secure),
		cookie.WithSameSite(http.SameSiteLaxMode),
		cookie.WithMaxAge(int(m.ttl.Seconds())),
	)
}

type ctxKey struct{}

// WithSession stores the session in the context.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session placed by the middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Session)
	return sess, ok && sess != nil
}

// Middleware ensures every request carries a session and exposes it via
// the request context.
func Middleware(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Ensure(w, r)
			if err != nil {
				m.logger.Error("establish session",
					logger.Error(err),
					logger.Component("session"),
				)
				http.Error(w, `{"error":{"code":500,"message":"internal_error"}}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
