package authgate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nousware/authkit/authgate"
	"github.com/nousware/authkit/identity"
	"github.com/nousware/authkit/pkg/validator"
	"github.com/nousware/authkit/token"
)

type fixture struct {
	idents  *identity.MemoryStore
	tokens  *token.MemoryStore
	service *authgate.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idents := identity.NewMemoryStore()
	tokens := token.NewMemoryStore()
	lc := token.NewLifecycle(tokens, idents, nil)
	return &fixture{
		idents:  idents,
		tokens:  tokens,
		service: authgate.New(idents, lc, authgate.WithBcryptCost(bcrypt.MinCost)),
	}
}

func (f *fixture) register(t *testing.T, email, password string) *identity.Identity {
	t.Helper()
	ident, err := f.service.Register(context.Background(), authgate.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return ident
}

func (f *fixture) verify(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, f.idents.SetEnabled(context.Background(), id, true))
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates a disabled account with a pending token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ident := f.register(t, "Ada.Lovelace@Example.COM ", "correct horse")

		assert.Equal(t, "ada.lovelace@example.com", ident.Email)
		assert.False(t, ident.Enabled)
		assert.Equal(t, identity.ProviderLocal, ident.Provider)
		assert.Equal(t, []string{identity.DefaultRole}, ident.Roles)
		assert.Equal(t, 1, f.tokens.Count())
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		f.register(t, "dup@example.com", "correct horse")

		_, err := f.service.Register(context.Background(), authgate.RegisterRequest{
			Email:    "DUP@example.com",
			Password: "another pass",
		})
		assert.ErrorIs(t, err, authgate.ErrEmailAlreadyRegistered)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.service.Register(context.Background(), authgate.RegisterRequest{
			Email:    "not-an-email",
			Password: "short",
		})
		var verr validator.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr, "email")
		assert.Contains(t, verr, "password")
	})
}

func TestService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("verified account logs in", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ident := f.register(t, "login@example.com", "correct horse")
		f.verify(t, ident.ID)

		p, err := f.service.Authenticate(context.Background(), "login@example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, ident.ID, p.IdentityID)
		assert.Equal(t, []string{identity.DefaultRole}, p.Roles)
		assert.Equal(t, identity.ProviderLocal, p.Provider)

		got, err := f.idents.GetByID(context.Background(), ident.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.LastLoginAt)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ident := f.register(t, "wrongpw@example.com", "correct horse")
		f.verify(t, ident.ID)

		_, err := f.service.Authenticate(context.Background(), "wrongpw@example.com", "incorrect horse")
		assert.ErrorIs(t, err, authgate.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.service.Authenticate(context.Background(), "ghost@example.com", "whatever")
		assert.ErrorIs(t, err, authgate.ErrInvalidCredentials)
	})

	t.Run("unverified account is disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		f.register(t, "pending@example.com", "correct horse")

		_, err := f.service.Authenticate(context.Background(), "pending@example.com", "correct horse")
		assert.ErrorIs(t, err, authgate.ErrAccountDisabled)
	})
}

func TestService_AuthenticateProvider(t *testing.T) {
	t.Parallel()

	t.Run("first login creates an enabled identity", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		p, err := f.service.AuthenticateProvider(context.Background(), identity.Profile{
			Subject:       "sub-123",
			Email:         "oidc@example.com",
			EmailVerified: true,
			DisplayName:   "Grace Hopper",
			PictureURL:    "https://img.example.com/grace.png",
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, "oidc@example.com", p.Email)
		assert.Equal(t, "Grace", p.FirstName)
		assert.Equal(t, "Hopper", p.LastName)
		assert.Equal(t, []string{identity.DefaultRole}, p.Roles)
		assert.True(t, p.Authenticated)
		assert.Equal(t, "https://img.example.com/grace.png", p.Picture)
		assert.Empty(t, p.Avatar)
		assert.Equal(t, "https://img.example.com/grace.png", p.DisplayPicture)
	})

	t.Run("claimed roles merge but never grant admin", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		p, err := f.service.AuthenticateProvider(context.Background(), identity.Profile{
			Subject:       "sub-claims",
			Email:         "claims@example.com",
			EmailVerified: true,
			DisplayName:   "Claims User",
		}, []string{"ROLE_ADMIN", "role_editor", "CLIENT"})
		require.NoError(t, err)

		assert.Equal(t, []string{"CLIENT", "EDITOR"}, p.Roles)
		assert.False(t, p.IsAdmin())
	})

	t.Run("store-held admin survives the merge", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		first, err := f.service.AuthenticateProvider(context.Background(), identity.Profile{
			Subject:       "sub-admin",
			Email:         "admin@example.com",
			EmailVerified: true,
			DisplayName:   "Admin User",
		}, nil)
		require.NoError(t, err)
		require.NoError(t, f.idents.AssignRole(context.Background(), first.IdentityID, identity.RoleAdmin))

		p, err := f.service.AuthenticateProvider(context.Background(), identity.Profile{
			Subject:       "sub-admin",
			Email:         "admin@example.com",
			EmailVerified: true,
			DisplayName:   "Admin User",
		}, []string{"ROLE_ADMIN"})
		require.NoError(t, err)

		assert.True(t, p.IsAdmin())
		assert.Equal(t, identity.RoleAdmin, p.TopRole())
	})
}

func TestService_ResetPassword(t *testing.T) {
	t.Parallel()

	t.Run("valid token changes the password once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ident := f.register(t, "reset@example.com", "old password")
		f.verify(t, ident.ID)

		lc := token.NewLifecycle(f.tokens, f.idents, nil)
		tok, err := lc.Issue(context.Background(), ident, token.TypePasswordReset)
		require.NoError(t, err)

		require.NoError(t, f.service.ResetPassword(context.Background(), tok.Value, "new password"))

		_, err = f.service.Authenticate(context.Background(), "reset@example.com", "old password")
		assert.ErrorIs(t, err, authgate.ErrInvalidCredentials)
		_, err = f.service.Authenticate(context.Background(), "reset@example.com", "new password")
		assert.NoError(t, err)

		// Single use.
		err = f.service.ResetPassword(context.Background(), tok.Value, "third password")
		assert.ErrorIs(t, err, authgate.ErrInvalidToken)
	})

	t.Run("verification token cannot reset a password", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ident := f.register(t, "crosstype@example.com", "old password")

		lc := token.NewLifecycle(f.tokens, f.idents, nil)
		tok, err := lc.Issue(context.Background(), ident, token.TypeEmailVerify)
		require.NoError(t, err)

		err = f.service.ResetPassword(context.Background(), tok.Value, "new password")
		assert.ErrorIs(t, err, authgate.ErrInvalidToken)
	})

	t.Run("weak replacement password is rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		err := f.service.ResetPassword(context.Background(), "some-token", "short")
		var verr validator.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr, "password")
	})
}

func TestService_UpdateAvatar(t *testing.T) {
	t.Parallel()

	t.Run("avatar wins over provider picture", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		p, err := f.service.AuthenticateProvider(context.Background(), identity.Profile{
			Subject:       "sub-avatar",
			Email:         "avatar@example.com",
			EmailVerified: true,
			DisplayName:   "Avatar User",
			PictureURL:    "https://img.example.com/provider.png",
		}, nil)
		require.NoError(t, err)

		updated, err := f.service.UpdateAvatar(context.Background(), p.IdentityID, "https://cdn.example.com/custom.png")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/custom.png", updated.Avatar)
		assert.Equal(t, "https://img.example.com/provider.png", updated.Picture)
		assert.Equal(t, "https://cdn.example.com/custom.png", updated.DisplayPicture)

		// Clearing falls back to the provider picture.
		cleared, err := f.service.UpdateAvatar(context.Background(), p.IdentityID, "")
		require.NoError(t, err)
		assert.Empty(t, cleared.Avatar)
		assert.Equal(t, "https://img.example.com/provider.png", cleared.DisplayPicture)
	})

	t.Run("rejects relative URLs", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ident := f.register(t, "badavatar@example.com", "correct horse")

		_, err := f.service.UpdateAvatar(context.Background(), ident.ID, "not a url")
		var verr validator.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestPrincipal_TopRole(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ADMIN", authgate.Principal{Roles: []string{"ADMIN", "CLIENT"}}.TopRole())
	assert.Equal(t, "CLIENT", authgate.Principal{Roles: []string{"EDITOR", "CLIENT"}}.TopRole())
	assert.Equal(t, identity.DefaultRole, authgate.Principal{}.TopRole())
}
