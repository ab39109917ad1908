// Package authn exposes the authentication HTTP surface: registration,
// email verification, local and Google login, password reset, and the
// current-principal endpoints. Handlers translate between the wire and
// the authgate, token, and session services; policy lives in those
// services, not here.
package authn

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nousware/authkit/authgate"
	"github.com/nousware/authkit/oauth"
	"github.com/nousware/authkit/session"
	"github.com/nousware/authkit/token"
)

// Config holds the module's wiring knobs.
type Config struct {
	// FrontendURL is where browser-facing flows (verify links, OAuth
	// callbacks) land after the backend finishes its part.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

// Module bundles the authentication handlers.
type Module struct {
	cfg      Config
	auth     *authgate.Service
	tokens   *token.Lifecycle
	sessions *session.Manager
	google   *oauth.Service
	logger   *slog.Logger
}

type Option func(*Module)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Module) { m.logger = log }
}

// New creates the authentication module. The google service may be nil,
// which disables the provider login routes.
func New(cfg Config, auth *authgate.Service, tokens *token.Lifecycle, sessions *session.Manager, google *oauth.Service, opts ...Option) *Module {
	m := &Module{
		cfg:      cfg,
		auth:     auth,
		tokens:   tokens,
		sessions: sessions,
		google:   google,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns the module's router, meant to be mounted at /api/auth.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/register", m.register)
	r.Get("/verify", m.verify)
	r.Post("/resend-verification", m.resendVerification)
	r.Post("/login", m.login)
	r.Post("/forgot-password", m.forgotPassword)
	r.Post("/reset-password", m.resetPassword)
	r.Post("/logout", m.logout)
	r.Get("/me", m.me)
	r.Patch("/me/avatar", m.updateAvatar)

	if m.google != nil {
		r.Get("/login/google", m.beginGoogleLogin)
		r.Get("/callback/google", m.completeGoogleLogin)
	}

	return r
}
