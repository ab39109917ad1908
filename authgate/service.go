// Package authgate implements credential verification and account
// lifecycle: registration with mandatory email verification, local and
// provider-backed login, and token-driven password reset.
package authgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nousware/authkit/identity"
	"github.com/nousware/authkit/pkg/logger"
	"github.com/nousware/authkit/pkg/sanitizer"
	"github.com/nousware/authkit/pkg/validator"
	"github.com/nousware/authkit/token"
)

// Service verifies credentials and manages account state. It never
// creates sessions; callers establish them after a successful
// authentication.
type Service struct {
	identities identity.Store
	tokens     *token.Lifecycle
	resolver   *identity.Resolver
	logger     *slog.Logger
	bcryptCost int
}

type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.logger = log }
}

// WithBcryptCost overrides the hashing cost, mainly to keep tests fast.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// New creates a Service over the given store and token lifecycle.
func New(identities identity.Store, tokens *token.Lifecycle, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		tokens:     tokens,
		resolver:   identity.NewResolver(identities),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates a disabled local account and issues a verification
// token. The account cannot log in until the token is redeemed.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*identity.Identity, error) {
	email := sanitizer.NormalizeEmail(req.Email)
	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.Password("password", req.Password),
		validator.MaxLen("first_name", req.FirstName, 100),
		validator.MaxLen("last_name", req.LastName, 100),
	); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ident := &identity.Identity{
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		Provider:     identity.ProviderLocal,
		Enabled:      false,
		Roles:        []string{identity.DefaultRole},
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	if _, err := s.tokens.Issue(ctx, ident, token.TypeEmailVerify); err != nil {
		// The account exists; the user can ask for a resend.
		s.logger.Error("issue verification token",
			logger.IdentityID(ident.ID),
			logger.Error(err),
			logger.Component("authgate"),
		)
	}

	s.logger.Info("identity registered",
		logger.IdentityID(ident.ID),
		logger.Event("register"),
		logger.Component("authgate"),
	)
	return ident, nil
}

// Authenticate checks a local email/password pair. Unknown emails and
// wrong passwords both come back as ErrInvalidCredentials; only a
// matching but unverified account is told apart, as ErrAccountDisabled.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	ident, err := s.identities.GetByEmail(ctx, sanitizer.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			// Burn comparable time so lookups don't reveal existence.
			_ = bcrypt.CompareHashAndPassword(phantomHash, []byte(password))
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, fmt.Errorf("lookup identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(ident.PasswordHash, []byte(password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	if !ident.Enabled {
		return Principal{}, ErrAccountDisabled
	}

	if err := s.identities.TouchLastLogin(ctx, ident.ID, time.Now()); err != nil {
		s.logger.Warn("touch last login",
			logger.IdentityID(ident.ID),
			logger.Error(err),
			logger.Component("authgate"),
		)
	}

	s.logger.Info("local login",
		logger.IdentityID(ident.ID),
		logger.Event("login"),
		logger.Provider(identity.ProviderLocal),
		logger.Component("authgate"),
	)
	return principalFor(ident, nil), nil
}

// phantomHash is a real bcrypt hash of an unguessable value, compared
// against when the email is unknown to equalize response timing.
var phantomHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// AuthenticateProvider upserts the external profile and returns the
// merged principal. Provider role claims are merged in, but ADMIN is
// only honored when the store already grants it.
func (s *Service) AuthenticateProvider(ctx context.Context, profile identity.Profile, claimedRoles []string) (Principal, error) {
	ident, err := s.resolver.UpsertExternal(ctx, profile)
	if err != nil {
		return Principal{}, err
	}

	s.logger.Info("provider login",
		logger.IdentityID(ident.ID),
		logger.Event("login"),
		logger.Provider(ident.Provider),
		logger.Component("authgate"),
	)
	return principalFor(ident, claimedRoles), nil
}

// ResetPassword redeems a reset token and stores the new password. The
// token is consumed regardless of what happens afterward.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if err := validator.Apply(
		validator.Required("token", tokenValue),
		validator.Password("password", newPassword),
	); err != nil {
		return err
	}

	res, err := s.tokens.Validate(ctx, tokenValue, token.TypePasswordReset)
	if err != nil {
		return err
	}
	if res.Outcome != token.OutcomeValid {
		return ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.identities.UpdatePasswordHash(ctx, res.IdentityID, hash); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	s.logger.Info("password reset",
		logger.IdentityID(res.IdentityID),
		logger.Event("password_reset"),
		logger.Component("authgate"),
	)
	return nil
}

// PrincipalByID reloads an identity and projects it, so callers always
// see current roles rather than whatever the session captured at login.
func (s *Service) PrincipalByID(ctx context.Context, id int64) (Principal, error) {
	ident, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	return principalFor(ident, nil), nil
}

// UpdateAvatar sets the user-chosen avatar, which takes precedence over
// any provider picture. An empty URL clears it.
func (s *Service) UpdateAvatar(ctx context.Context, id int64, avatarURL string) (Principal, error) {
	avatarURL = strings.TrimSpace(avatarURL)
	if avatarURL != "" {
		u, err := url.Parse(avatarURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return Principal{}, validator.ValidationError{
				"avatar_url": {"must be an absolute http(s) URL"},
			}
		}
	}

	ident, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	ident.AvatarURL = avatarURL
	if err := s.identities.Update(ctx, ident); err != nil {
		return Principal{}, fmt.Errorf("update identity: %w", err)
	}
	return principalFor(ident, nil), nil
}
