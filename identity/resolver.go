package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nousware/authkit/pkg/logger"
	"github.com/nousware/authkit/pkg/sanitizer"
)

// Profile is the externally-asserted view of a user delivered by the
// OIDC provider after a successful handshake.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	PictureURL    string
}

// Resolver reconciles provider profiles against the identity store.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

type ResolverOption func(*Resolver)

// WithResolverLogger sets a custom logger.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = log }
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpsertExternal creates or updates a local identity from a provider
// profile. A provider-verified email counts as implicit verification, so
// the resulting identity is always enabled. Blank provider values never
// overwrite stored data, and an already-linked subject id is never
// replaced. Safe under concurrent calls for the same subject or email:
// the insert loser of a race retries as an update.
func (r *Resolver) UpsertExternal(ctx context.Context, profile Profile) (*Identity, error) {
	if profile.Subject == "" || profile.Email == "" || !profile.EmailVerified {
		return nil, ErrIncompleteProfile
	}
	email := sanitizer.NormalizeEmail(profile.Email)

	ident, err := r.store.GetBySubject(ctx, profile.Subject)
	if errors.Is(err, ErrNotFound) {
		ident, err = r.store.GetByEmail(ctx, email)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	if ident == nil {
		created, createErr := r.createFromProfile(ctx, profile, email)
		if createErr == nil {
			return created, nil
		}
		// A concurrent upsert for the same subject or email won the
		// insert; fall through to the update path against its row.
		if !errors.Is(createErr, ErrEmailTaken) && !errors.Is(createErr, ErrSubjectTaken) {
			return nil, createErr
		}
		ident, err = r.store.GetBySubject(ctx, profile.Subject)
		if errors.Is(err, ErrNotFound) {
			ident, err = r.store.GetByEmail(ctx, email)
		}
		if err != nil {
			return nil, fmt.Errorf("refetch after lost insert race: %w", err)
		}
	}

	return r.refresh(ctx, ident, profile)
}

func (r *Resolver) createFromProfile(ctx context.Context, profile Profile, email string) (*Identity, error) {
	first, last := sanitizer.SplitDisplayName(profile.DisplayName)
	now := time.Now()
	subject := profile.Subject

	ident := &Identity{
		Email:       email,
		FirstName:   first,
		LastName:    last,
		Subject:     &subject,
		Provider:    ProviderGoogle,
		Enabled:     true,
		PictureURL:  profile.PictureURL,
		Roles:       []string{DefaultRole},
		LastLoginAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.Create(ctx, ident); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "created identity from provider profile",
		logger.IdentityID(ident.ID),
		logger.Provider(ProviderGoogle),
		logger.Component("identity"),
	)
	return ident, nil
}

func (r *Resolver) refresh(ctx context.Context, ident *Identity, profile Profile) (*Identity, error) {
	// First provider wins: an existing different subject link is kept.
	if ident.Subject == nil {
		subject := profile.Subject
		ident.Subject = &subject
	}

	if first, last := sanitizer.SplitDisplayName(profile.DisplayName); first != "" {
		ident.FirstName = first
		if last != "" {
			ident.LastName = last
		}
	}
	if profile.PictureURL != "" {
		ident.PictureURL = profile.PictureURL
	}

	// Provider login counts as verification.
	ident.Enabled = true
	if ident.Provider == "" {
		ident.Provider = ProviderGoogle
	}

	if err := r.store.Update(ctx, ident); err != nil {
		return nil, fmt.Errorf("refresh identity: %w", err)
	}

	now := time.Now()
	if err := r.store.TouchLastLogin(ctx, ident.ID, now); err != nil {
		r.logger.WarnContext(ctx, "failed to record provider login time",
			logger.IdentityID(ident.ID),
			logger.Error(err),
			logger.Component("identity"),
		)
	}
	ident.LastLoginAt = &now

	return ident, nil
}
