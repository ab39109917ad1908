package token

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nousware/authkit/identity"
	"github.com/nousware/authkit/pkg/logger"
	"github.com/nousware/authkit/pkg/sanitizer"
)

// Dispatcher delivers token notifications. Implementations are expected
// to be slow and unreliable; the lifecycle never lets their failures
// reach the caller.
type Dispatcher interface {
	SendVerification(ctx context.Context, to, tokenValue string) error
	SendPasswordReset(ctx context.Context, to, tokenValue string) error
}

// Outcome of validating a token string.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeExpired
	OutcomeValid
)

// Result carries the validation outcome and, when the token matched, the
// owning identity.
type Result struct {
	Outcome    Outcome
	IdentityID int64
}

// VerifyResult is the outcome of the verify-or-resend flow.
type VerifyResult int

const (
	VerifyInvalid VerifyResult = iota
	VerifyVerified
	VerifyResentNewLink
)

// Lifecycle issues, validates, and consumes single-use tokens and
// drives the verification and reset flows on top of them.
type Lifecycle struct {
	tokens     Store
	identities identity.Store
	emails     Dispatcher
	logger     *slog.Logger

	verifyTTL    time.Duration
	resetTTL     time.Duration
	emailTimeout time.Duration
}

type LifecycleOption func(*Lifecycle)

// WithLifecycleLogger sets a custom logger.
func WithLifecycleLogger(log *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) { l.logger = log }
}

// WithVerifyTTL sets the TTL for email verification tokens.
func WithVerifyTTL(ttl time.Duration) LifecycleOption {
	return func(l *Lifecycle) { l.verifyTTL = ttl }
}

// WithResetTTL sets the TTL for password reset tokens.
func WithResetTTL(ttl time.Duration) LifecycleOption {
	return func(l *Lifecycle) { l.resetTTL = ttl }
}

// WithEmailTimeout bounds the detached email dispatch.
func WithEmailTimeout(d time.Duration) LifecycleOption {
	return func(l *Lifecycle) { l.emailTimeout = d }
}

// NewLifecycle creates a Lifecycle over the given stores and dispatcher.
func NewLifecycle(tokens Store, identities identity.Store, emails Dispatcher, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		tokens:       tokens,
		identities:   identities,
		emails:       emails,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		verifyTTL:    15 * time.Minute,
		resetTTL:     1 * time.Hour,
		emailTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue retires any live token of the same (identity, type) pair,
// persists a fresh one, and dispatches the matching notification.
// Notification failures are logged and swallowed; issuance succeeds or
// fails on persistence alone.
func (l *Lifecycle) Issue(ctx context.Context, ident *identity.Identity, typ Type) (*Token, error) {
	tok, err := New(ident.ID, typ, l.ttlFor(typ))
	if err != nil {
		return nil, err
	}

	if err := l.tokens.Replace(ctx, tok); err != nil {
		// A concurrent issue for the same pair may win the value race;
		// one retry with a fresh value resolves it.
		if !errors.Is(err, ErrDuplicate) {
			return nil, fmt.Errorf("store token: %w", err)
		}
		if tok, err = New(ident.ID, typ, l.ttlFor(typ)); err != nil {
			return nil, err
		}
		if err := l.tokens.Replace(ctx, tok); err != nil {
			return nil, fmt.Errorf("store token after retry: %w", err)
		}
	}

	l.dispatch(ident.Email, tok)
	return tok, nil
}

// Validate looks up a token string. A match of the wrong type counts as
// not found. An expired token is deleted as part of detection; a valid
// one is deleted as part of consumption, so the row is gone afterward
// either way.
func (l *Lifecycle) Validate(ctx context.Context, value string, expected Type) (Result, error) {
	tok, err := l.tokens.Find(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Outcome: OutcomeNotFound}, nil
		}
		return Result{}, fmt.Errorf("find token: %w", err)
	}

	if tok.Type != expected {
		return Result{Outcome: OutcomeNotFound}, nil
	}

	if tok.Expired(time.Now()) {
		if err := l.tokens.Delete(ctx, tok.Value); err != nil {
			return Result{}, fmt.Errorf("delete expired token: %w", err)
		}
		return Result{Outcome: OutcomeExpired, IdentityID: tok.IdentityID}, nil
	}

	if err := l.tokens.Delete(ctx, tok.Value); err != nil {
		return Result{}, fmt.Errorf("consume token: %w", err)
	}
	return Result{Outcome: OutcomeValid, IdentityID: tok.IdentityID}, nil
}

// VerifyOrResend verifies an account by token. An expired link is not a
// dead end: the stale token is consumed and a fresh one is issued and
// mailed, so the user gets a working link instead of an error.
func (l *Lifecycle) VerifyOrResend(ctx context.Context, value string) (VerifyResult, error) {
	res, err := l.Validate(ctx, value, TypeEmailVerify)
	if err != nil {
		return VerifyInvalid, err
	}

	switch res.Outcome {
	case OutcomeValid:
		ident, err := l.identities.GetByID(ctx, res.IdentityID)
		if err != nil {
			return VerifyInvalid, fmt.Errorf("load identity: %w", err)
		}
		if !ident.Enabled {
			if err := l.identities.SetEnabled(ctx, ident.ID, true); err != nil {
				return VerifyInvalid, fmt.Errorf("enable identity: %w", err)
			}
		}
		return VerifyVerified, nil

	case OutcomeExpired:
		ident, err := l.identities.GetByID(ctx, res.IdentityID)
		if err != nil {
			return VerifyInvalid, fmt.Errorf("load identity: %w", err)
		}
		if _, err := l.Issue(ctx, ident, TypeEmailVerify); err != nil {
			return VerifyInvalid, fmt.Errorf("reissue verification token: %w", err)
		}
		return VerifyResentNewLink, nil

	default:
		return VerifyInvalid, nil
	}
}

// RequestVerification issues a fresh verification token for the given
// email. Unknown addresses and already-verified accounts are silently
// ignored so the endpoint never reveals whether an account exists.
func (l *Lifecycle) RequestVerification(ctx context.Context, email string) error {
	ident, err := l.identities.GetByEmail(ctx, sanitizer.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup identity: %w", err)
	}
	if ident.Enabled {
		return nil
	}

	_, err = l.Issue(ctx, ident, TypeEmailVerify)
	return err
}

// RequestPasswordReset issues a reset token for the given email.
// Unknown addresses are silently ignored.
func (l *Lifecycle) RequestPasswordReset(ctx context.Context, email string) error {
	ident, err := l.identities.GetByEmail(ctx, sanitizer.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup identity: %w", err)
	}

	_, err = l.Issue(ctx, ident, TypePasswordReset)
	return err
}

func (l *Lifecycle) ttlFor(typ Type) time.Duration {
	if typ == TypePasswordReset {
		return l.resetTTL
	}
	return l.verifyTTL
}

// dispatch sends the notification in a detached goroutine. The caller's
// success never depends on delivery.
func (l *Lifecycle) dispatch(email string, tok *Token) {
	if l.emails == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("email dispatch panicked",
					slog.Any("panic", r),
					logger.TokenType(tok.Type),
					logger.Component("token"),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), l.emailTimeout)
		defer cancel()

		var err error
		switch tok.Type {
		case TypePasswordReset:
			err = l.emails.SendPasswordReset(ctx, email, tok.Value)
		default:
			err = l.emails.SendVerification(ctx, email, tok.Value)
		}
		if err != nil {
			l.logger.Error("email dispatch failed",
				logger.IdentityID(tok.IdentityID),
				logger.TokenType(tok.Type),
				logger.Error(err),
				logger.Component("token"),
			)
		}
	}()
}
