package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nousware/authkit/pkg/cookie"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newManager(t *testing.T, opts ...cookie.Option) *cookie.Manager {
	t.Helper()
	m, err := cookie.New([]string{testSecret}, opts...)
	require.NoError(t, err)
	return m
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := cookie.New(nil)
	assert.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.New([]string{""})
	assert.ErrorIs(t, err, cookie.ErrNoSecret)

	_, err = cookie.New([]string{"too-short"})
	assert.ErrorIs(t, err, cookie.ErrSecretTooShort)
}

func TestSetGet(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	rec := httptest.NewRecorder()
	m.Set(rec, "sid", "abc123")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	got, err := m.Get(req, "sid")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)

	_, err = m.Get(req, "missing")
	assert.ErrorIs(t, err, cookie.ErrCookieNotFound)
}

func TestSignedRoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	rec := httptest.NewRecorder()
	m.SetSigned(rec, "sid", "session-token")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	got, err := m.GetSigned(req, "sid")
	require.NoError(t, err)
	assert.Equal(t, "session-token", got)
}

func TestSigned_TamperDetected(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	rec := httptest.NewRecorder()
	m.SetSigned(rec, "sid", "session-token")

	raw := rec.Result().Cookies()[0]
	parts := strings.SplitN(raw.Value, "|", 2)
	require.Len(t, parts, 2)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: parts[0] + "|forged-signature"})

	_, err := m.GetSigned(req, "sid")
	assert.ErrorIs(t, err, cookie.ErrInvalidSignature)
}

func TestSigned_KeyRotation(t *testing.T) {
	t.Parallel()

	oldSecret := "ffffffffffffffffffffffffffffffff"
	oldMgr, err := cookie.New([]string{oldSecret})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	oldMgr.SetSigned(rec, "sid", "session-token")

	// New manager signs with a fresh key but still verifies the old one.
	newMgr, err := cookie.New([]string{testSecret, oldSecret})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	got, err := newMgr.GetSigned(req, "sid")
	require.NoError(t, err)
	assert.Equal(t, "session-token", got)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	rec := httptest.NewRecorder()
	m.Delete(rec, "sid")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	m := newManager(t, cookie.WithSecure(true), cookie.WithSameSite(http.SameSiteNoneMode))
	rec := httptest.NewRecorder()
	m.Set(rec, "sid", "v", cookie.WithHTTPOnly(false))

	c := rec.Result().Cookies()[0]
	assert.True(t, c.Secure)
	assert.False(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
}
