package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nousware/authkit/pkg/cookie"
	"github.com/nousware/authkit/session"
)

func newManager(t *testing.T, opts ...session.ManagerOption) (*session.Manager, *session.MemoryStore) {
	t.Helper()
	cookies, err := cookie.New([]string{"0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)
	store := session.NewMemoryStore()
	return session.NewManager(store, cookies, opts...), store
}

// carry moves the cookies set by a response onto a fresh request.
func carry(t *testing.T, rec *httptest.ResponseRecorder, req *http.Request) *http.Request {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestManager_Ensure(t *testing.T) {
	t.Parallel()

	t.Run("creates an anonymous session and reuses it", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)

		rec := httptest.NewRecorder()
		first, err := m.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.False(t, first.IsAuthenticated())
		assert.NotEmpty(t, first.CSRFToken)

		req := carry(t, rec, httptest.NewRequest(http.MethodGet, "/", nil))
		second, err := m.Ensure(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Token, second.Token)
	})

	t.Run("tampered cookie falls back to a fresh session", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: m.CookieName(), Value: "forged"})

		sess, err := m.Ensure(httptest.NewRecorder(), req)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.False(t, sess.IsAuthenticated())
	})
}

func TestManager_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("rotates token and csrf on login", func(t *testing.T) {
		t.Parallel()
		m, store := newManager(t)

		rec := httptest.NewRecorder()
		anon, err := m.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		loginReq := carry(t, rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		loginRec := httptest.NewRecorder()
		authed, err := m.Authenticate(loginRec, loginReq, 42)
		require.NoError(t, err)

		assert.Equal(t, int64(42), authed.IdentityID)
		assert.NotEqual(t, anon.Token, authed.Token)
		assert.NotEqual(t, anon.CSRFToken, authed.CSRFToken)
		assert.Equal(t, anon.ID, authed.ID)

		// The pre-login token is dead.
		_, err = store.GetByToken(context.Background(), anon.Token)
		assert.ErrorIs(t, err, session.ErrNotFound)

		// The new cookie resolves to the authenticated session.
		nextReq := carry(t, loginRec, httptest.NewRequest(http.MethodGet, "/me", nil))
		loaded, err := m.Load(nextReq)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, int64(42), loaded.IdentityID)
	})

	t.Run("rotation hook sees the new session before the response closes", func(t *testing.T) {
		t.Parallel()

		var rotated *session.Session
		m, _ := newManager(t, session.WithRotationHook(func(w http.ResponseWriter, s *session.Session) {
			w.Header().Add("Set-Cookie", "rotated=1")
			rotated = s
		}))

		rec := httptest.NewRecorder()
		authed, err := m.Authenticate(rec, httptest.NewRequest(http.MethodPost, "/login", nil), 9)
		require.NoError(t, err)

		require.NotNil(t, rotated)
		assert.Equal(t, authed.CSRFToken, rotated.CSRFToken)
		assert.Contains(t, rec.Header().Values("Set-Cookie"), "rotated=1")
	})

	t.Run("login without a prior session still works", func(t *testing.T) {
		t.Parallel()
		m, _ := newManager(t)

		sess, err := m.Authenticate(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), sess.IdentityID)
	})
}

func TestManager_Logout(t *testing.T) {
	t.Parallel()

	m, store := newManager(t)

	rec := httptest.NewRecorder()
	sess, err := m.Authenticate(rec, httptest.NewRequest(http.MethodPost, "/login", nil), 42)
	require.NoError(t, err)

	req := carry(t, rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, m.Logout(httptest.NewRecorder(), req))

	_, err = store.GetByToken(context.Background(), sess.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Logout with no session is a no-op.
	require.NoError(t, m.Logout(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/logout", nil)))
}

func TestStores(t *testing.T) {
	t.Parallel()

	t.Run("memory treats expired as absent", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()

		sess, err := session.New(-time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), sess))

		_, err = store.GetByToken(context.Background(), sess.Token)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("redis round trip with TTL", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		store := session.NewRedisStore(client)

		sess, err := session.New(time.Hour)
		require.NoError(t, err)
		sess.IdentityID = 9
		require.NoError(t, store.Save(context.Background(), sess))

		got, err := store.GetByToken(context.Background(), sess.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(9), got.IdentityID)
		assert.Equal(t, sess.CSRFToken, got.CSRFToken)

		// Redis reclaims the key once the TTL elapses.
		mr.FastForward(2 * time.Hour)
		_, err = store.GetByToken(context.Background(), sess.Token)
		assert.ErrorIs(t, err, session.ErrNotFound)

		require.NoError(t, store.Delete(context.Background(), sess.Token))
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t)

	var seen *session.Session
	h := session.Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotEmpty(t, rec.Result().Cookies())
}
