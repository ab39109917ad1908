package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"admin", "ADMIN"},
		{"ROLE_ADMIN", "ADMIN"},
		{"role_client", "CLIENT"},
		{"  Client  ", "CLIENT"},
		{"", ""},
		{"ROLE_", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRole(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeRoles(t *testing.T) {
	t.Parallel()

	t.Run("dedupes prefixed and unprefixed variants", func(t *testing.T) {
		t.Parallel()
		got := NormalizeRoles([]string{"ROLE_CLIENT", "client", "CLIENT"})
		assert.Equal(t, []string{"CLIENT"}, got)
	})

	t.Run("admin sorts first", func(t *testing.T) {
		t.Parallel()
		got := NormalizeRoles([]string{"editor", "client", "admin"})
		assert.Equal(t, []string{"ADMIN", "CLIENT", "EDITOR"}, got)
	})

	t.Run("drops blanks", func(t *testing.T) {
		t.Parallel()
		got := NormalizeRoles([]string{"", "  ", "ROLE_", "client"})
		assert.Equal(t, []string{"CLIENT"}, got)
	})
}

func TestExpandAuthorities(t *testing.T) {
	t.Parallel()

	got := ExpandAuthorities([]string{"admin"})
	assert.Equal(t, []string{"ADMIN", "ROLE_ADMIN"}, got)
}

func TestTopRole(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ADMIN", TopRole([]string{"client", "ROLE_ADMIN"}))
	assert.Equal(t, "CLIENT", TopRole([]string{"editor", "client"}))
	assert.Equal(t, DefaultRole, TopRole(nil))
}

func TestIdentity_DisplayPicture(t *testing.T) {
	t.Parallel()

	ident := &Identity{PictureURL: "https://p.example/pic.jpg"}
	assert.Equal(t, "https://p.example/pic.jpg", ident.DisplayPicture())

	ident.AvatarURL = "https://a.example/avatar.jpg"
	assert.Equal(t, "https://a.example/avatar.jpg", ident.DisplayPicture())
}

func TestIdentity_HasRole(t *testing.T) {
	t.Parallel()

	ident := &Identity{Roles: []string{"ROLE_ADMIN"}}
	assert.True(t, ident.HasRole("admin"))
	assert.True(t, ident.HasRole("ROLE_ADMIN"))
	assert.False(t, ident.HasRole("client"))
}
