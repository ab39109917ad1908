package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile() Profile {
	return Profile{
		Subject:       "google-sub-1",
		Email:         "Jane.Doe@Example.com",
		EmailVerified: true,
		DisplayName:   "Jane Q Doe",
		PictureURL:    "https://lh3.example/p.jpg",
	}
}

func TestUpsertExternal_CreatesIdentity(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	resolver := NewResolver(store)

	ident, err := resolver.UpsertExternal(context.Background(), validProfile())
	require.NoError(t, err)

	assert.Equal(t, "jane.doe@example.com", ident.Email)
	assert.Equal(t, "Jane", ident.FirstName)
	assert.Equal(t, "Doe", ident.LastName)
	require.NotNil(t, ident.Subject)
	assert.Equal(t, "google-sub-1", *ident.Subject)
	assert.Equal(t, ProviderGoogle, ident.Provider)
	assert.True(t, ident.Enabled)
	assert.Equal(t, []string{DefaultRole}, ident.Roles)
	assert.NotNil(t, ident.LastLoginAt)
}

func TestUpsertExternal_IncompleteProfile(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	resolver := NewResolver(store)

	for name, profile := range map[string]Profile{
		"missing subject":  {Email: "a@x.com", EmailVerified: true},
		"missing email":    {Subject: "sub", EmailVerified: true},
		"unverified email": {Subject: "sub", Email: "a@x.com"},
	} {
		_, err := resolver.UpsertExternal(context.Background(), profile)
		assert.ErrorIs(t, err, ErrIncompleteProfile, name)
	}
}

func TestUpsertExternal_LinksExistingLocalAccount(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	local := &Identity{
		Email:    "jane.doe@example.com",
		Provider: ProviderLocal,
		Enabled:  false,
	}
	require.NoError(t, store.Create(context.Background(), local))

	resolver := NewResolver(store)
	ident, err := resolver.UpsertExternal(context.Background(), validProfile())
	require.NoError(t, err)

	assert.Equal(t, local.ID, ident.ID)
	require.NotNil(t, ident.Subject)
	assert.Equal(t, "google-sub-1", *ident.Subject)
	// Provider login implies the email is verified.
	assert.True(t, ident.Enabled)
}

func TestUpsertExternal_BlankValuesNeverClobber(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	resolver := NewResolver(store)
	ctx := context.Background()

	first, err := resolver.UpsertExternal(ctx, validProfile())
	require.NoError(t, err)
	require.Equal(t, "Jane", first.FirstName)

	blank := validProfile()
	blank.DisplayName = ""
	blank.PictureURL = ""

	second, err := resolver.UpsertExternal(ctx, blank)
	require.NoError(t, err)
	assert.Equal(t, "Jane", second.FirstName)
	assert.Equal(t, "Doe", second.LastName)
	assert.Equal(t, "https://lh3.example/p.jpg", second.PictureURL)
}

func TestUpsertExternal_UpdatesChangedName(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	resolver := NewResolver(store)
	ctx := context.Background()

	_, err := resolver.UpsertExternal(ctx, validProfile())
	require.NoError(t, err)

	changed := validProfile()
	changed.DisplayName = "Janet Smith"

	ident, err := resolver.UpsertExternal(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, "Janet", ident.FirstName)
	assert.Equal(t, "Smith", ident.LastName)
}

func TestUpsertExternal_FirstProviderWins(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	resolver := NewResolver(store)
	ctx := context.Background()

	first, err := resolver.UpsertExternal(ctx, validProfile())
	require.NoError(t, err)

	// Same email arrives with a different subject; the original link is kept.
	other := validProfile()
	other.Subject = "google-sub-2"

	ident, err := resolver.UpsertExternal(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, first.ID, ident.ID)
	require.NotNil(t, ident.Subject)
	assert.Equal(t, "google-sub-1", *ident.Subject)
}

func TestUpsertExternal_ConcurrentSameSubject(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	resolver := NewResolver(store)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Identity, n)
	errs := make([]error, n)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = resolver.UpsertExternal(context.Background(), validProfile())
		}()
	}
	wg.Wait()

	var id int64
	for i := range n {
		require.NoError(t, errs[i])
		if id == 0 {
			id = results[i].ID
		}
		assert.Equal(t, id, results[i].ID, "all upserts must resolve to one identity")
	}
}
