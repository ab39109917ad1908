// Package oauth drives the Google OIDC login handshake: it hands out
// the provider redirect with single-use anti-forgery state and turns
// the callback code into a verified profile.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nousware/authkit/identity"
)

// Config carries the Google application credentials.
type Config struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID,required"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET,required"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL,required"`
}

var (
	// ErrInvalidState indicates the callback state was missing, already
	// used, or expired.
	ErrInvalidState = errors.New("oauth.invalid_state")

	// ErrExchange indicates the provider rejected the authorization code.
	ErrExchange = errors.New("oauth.exchange_failed")
)

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Service implements the provider side of a Google login.
type Service struct {
	conf        *oauth2.Config
	states      StateStore
	userInfoURL string
	stateTTL    time.Duration
	httpClient  *http.Client
}

type Option func(*Service)

// WithEndpoint overrides the provider endpoints, used to point the
// handshake at a test server.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(s *Service) { s.conf.Endpoint = ep }
}

// WithUserInfoURL overrides where the profile is fetched from.
func WithUserInfoURL(url string) Option {
	return func(s *Service) { s.userInfoURL = url }
}

// WithStateTTL bounds how long a started login stays completable.
func WithStateTTL(ttl time.Duration) Option {
	return func(s *Service) { s.stateTTL = ttl }
}

// WithHTTPClient sets the client used for the userinfo fetch.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// New creates a Service for the given Google application.
func New(cfg Config, states StateStore, opts ...Option) *Service {
	s := &Service{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		states:      states,
		userInfoURL: defaultUserInfoURL,
		stateTTL:    10 * time.Minute,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginLogin records a fresh state and returns the provider URL to
// redirect the browser to.
func (s *Service) BeginLogin(ctx context.Context) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}
	if err := s.states.Save(ctx, state, s.stateTTL); err != nil {
		return "", err
	}
	return s.conf.AuthCodeURL(state), nil
}

// CompleteLogin validates the callback state, exchanges the code, and
// fetches the user's profile from the provider.
func (s *Service) CompleteLogin(ctx context.Context, state, code string) (identity.Profile, error) {
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return identity.Profile{}, err
	}
	if !ok || state == "" {
		return identity.Profile{}, ErrInvalidState
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.conf.Exchange(ctx, code)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	return s.fetchProfile(ctx, tok)
}

func (s *Service) fetchProfile(ctx context.Context, tok *oauth2.Token) (identity.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return identity.Profile{}, err
	}
	tok.SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return identity.Profile{}, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, body)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return identity.Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}

	return identity.Profile{
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
		PictureURL:    claims.Picture,
	}, nil
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
