package authn

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/nousware/authkit/authgate"
	"github.com/nousware/authkit/core"
	"github.com/nousware/authkit/identity"
	"github.com/nousware/authkit/oauth"
	"github.com/nousware/authkit/pkg/logger"
	"github.com/nousware/authkit/routes"
	"github.com/nousware/authkit/session"
	"github.com/nousware/authkit/token"
)

var (
	errEmailTaken         = core.NewHTTPError(http.StatusConflict, "email_already_registered")
	errInvalidCredentials = core.NewHTTPError(http.StatusUnauthorized, "invalid_credentials")
	errAccountDisabled    = core.NewHTTPError(http.StatusForbidden, "account_disabled")
	errInvalidToken       = core.NewHTTPError(http.StatusBadRequest, "invalid_token")
	errInvalidState       = core.NewHTTPError(http.StatusBadRequest, "invalid_state")
	errProfileIncomplete  = core.NewHTTPError(http.StatusUnauthorized, "provider_profile_incomplete")
	errNoSession          = core.NewHTTPError(http.StatusUnauthorized, "authentication_required")
)

// apiError folds domain sentinels into transport errors; anything
// unmapped falls through to core.JSONError's 500.
func apiError(err error) error {
	switch {
	case errors.Is(err, authgate.ErrEmailAlreadyRegistered):
		return errEmailTaken
	case errors.Is(err, authgate.ErrInvalidCredentials):
		return errInvalidCredentials
	case errors.Is(err, authgate.ErrAccountDisabled):
		return errAccountDisabled
	case errors.Is(err, authgate.ErrInvalidToken):
		return errInvalidToken
	case errors.Is(err, oauth.ErrInvalidState):
		return errInvalidState
	case errors.Is(err, identity.ErrIncompleteProfile):
		return errProfileIncomplete
	case errors.Is(err, identity.ErrNotFound):
		return core.ErrNotFound
	default:
		return err
	}
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return core.ErrBadRequest
	}
	return nil
}

func (m *Module) register(w http.ResponseWriter, r *http.Request) {
	var req authgate.RegisterRequest
	if err := decode(r, &req); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}

	ident, err := m.auth.Register(r.Context(), req)
	if err != nil {
		core.Render(w, r, core.JSONError(apiError(err)))
		return
	}

	core.Render(w, r, core.JSONStatus(http.StatusCreated, map[string]any{
		"email":   ident.Email,
		"message": "verification email sent",
	}))
}

// verify lands from the link in the email. Browsers get bounced back to
// the frontend with the outcome in the query string; API clients asking
// for JSON get it directly.
func (m *Module) verify(w http.ResponseWriter, r *http.Request) {
	res, err := m.tokens.VerifyOrResend(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		m.logger.Error("verify email",
			logger.Error(err),
			logger.Component("authn"),
		)
		core.Render(w, r, core.JSONError(err))
		return
	}

	status := "invalid"
	switch res {
	case token.VerifyVerified:
		status = "verified"
	case token.VerifyResentNewLink:
		status = "resent"
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		core.Render(w, r, core.JSON(map[string]string{"status": status}))
		return
	}
	core.Render(w, r, core.Redirect(m.cfg.FrontendURL+"/login?verification="+url.QueryEscape(status)))
}

func (m *Module) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}

	// Deliberately the same answer whether or not the account exists.
	if err := m.tokens.RequestVerification(r.Context(), req.Email); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}
	core.Render(w, r, core.JSONStatus(http.StatusAccepted, map[string]string{
		"message": "if the account exists and is unverified, a new link is on its way",
	}))
}

func (m *Module) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}

	principal, err := m.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Render(w, r, core.JSONError(apiError(err)))
		return
	}

	if _, err := m.sessions.Authenticate(w, r, principal.IdentityID); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}
	core.Render(w, r, core.JSON(principal))
}

func (m *Module) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}

	if err := m.tokens.RequestPasswordReset(r.Context(), req.Email); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}
	core.Render(w, r, core.JSONStatus(http.StatusAccepted, map[string]string{
		"message": "if the account exists, a reset link is on its way",
	}))
}

func (m *Module) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}

	if err := m.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		core.Render(w, r, core.JSONError(apiError(err)))
		return
	}
	core.Render(w, r, core.Message("password updated"))
}

func (m *Module) logout(w http.ResponseWriter, r *http.Request) {
	if err := m.sessions.Logout(w, r); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}
	core.Render(w, r, core.NoContent())
}

// currentPrincipal resolves the caller, preferring what the permission
// middleware already loaded.
func (m *Module) currentPrincipal(r *http.Request) (authgate.Principal, error) {
	if p, ok := routes.PrincipalFromContext(r.Context()); ok {
		return p, nil
	}
	sess, ok := session.FromContext(r.Context())
	if !ok || !sess.IsAuthenticated() {
		return authgate.Principal{}, errNoSession
	}
	return m.auth.PrincipalByID(r.Context(), sess.IdentityID)
}

// me serves the principal projection. Anonymous callers get the
// authenticated flag instead of an error envelope, so the frontend can
// check login state with one request.
func (m *Module) me(w http.ResponseWriter, r *http.Request) {
	principal, err := m.currentPrincipal(r)
	if err != nil {
		if errors.Is(err, errNoSession) {
			core.Render(w, r, core.JSONStatus(http.StatusUnauthorized, map[string]bool{"authenticated": false}))
			return
		}
		core.Render(w, r, core.JSONError(apiError(err)))
		return
	}
	core.Render(w, r, core.JSON(principal))
}

func (m *Module) updateAvatar(w http.ResponseWriter, r *http.Request) {
	principal, err := m.currentPrincipal(r)
	if err != nil {
		core.Render(w, r, core.JSONError(apiError(err)))
		return
	}

	var req struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := decode(r, &req); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}

	updated, err := m.auth.UpdateAvatar(r.Context(), principal.IdentityID, req.AvatarURL)
	if err != nil {
		core.Render(w, r, core.JSONError(apiError(err)))
		return
	}
	core.Render(w, r, core.JSON(updated))
}

func (m *Module) beginGoogleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := m.google.BeginLogin(r.Context())
	if err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}
	core.Render(w, r, core.Redirect(authURL))
}

// completeGoogleLogin is a browser redirect target, so failures bounce
// to the frontend login page instead of rendering JSON at the user.
func (m *Module) completeGoogleLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	profile, err := m.google.CompleteLogin(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		m.logger.Warn("google login failed",
			logger.Error(err),
			logger.Provider(identity.ProviderGoogle),
			logger.Component("authn"),
		)
		core.Render(w, r, core.Redirect(m.cfg.FrontendURL+"/login?error=oauth"))
		return
	}

	principal, err := m.auth.AuthenticateProvider(r.Context(), profile, nil)
	if err != nil {
		m.logger.Error("provider upsert failed",
			logger.Error(err),
			logger.Provider(identity.ProviderGoogle),
			logger.Component("authn"),
		)
		core.Render(w, r, core.Redirect(m.cfg.FrontendURL+"/login?error=oauth"))
		return
	}

	if _, err := m.sessions.Authenticate(w, r, principal.IdentityID); err != nil {
		core.Render(w, r, core.JSONError(err))
		return
	}
	core.Render(w, r, core.Redirect(m.cfg.FrontendURL))
}
