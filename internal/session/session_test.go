package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispen-agua-admin/internal/backend"
)

func newFakeBackend(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-admin-secret") != secret {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/api/dispensers":
			json.NewEncoder(w).Encode([]backend.Dispenser{})
		case "/api/config":
			json.NewEncoder(w).Encode(map[string]string{"mp_mode": "test"})
		case "/api/mp/oauth/status":
			json.NewEncoder(w).Encode(backend.OAuthStatus{})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginProbeRejectsBadSecret(t *testing.T) {
	srv := newFakeBackend(t, "good")
	m := NewManager(srv.URL, time.Second, 10, time.Hour)
	defer m.Shutdown()

	_, err := m.Login(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, backend.IsAuthError(err))

	_, ok := m.Get("anything")
	assert.False(t, ok, "a failed login leaves no session behind")
}

func TestLoginLogoutLifecycle(t *testing.T) {
	srv := newFakeBackend(t, "good")
	m := NewManager(srv.URL, time.Second, 10, time.Hour)
	defer m.Shutdown()

	token, err := m.Login(context.Background(), "good")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	s, ok := m.Get(token)
	require.True(t, ok)
	assert.NotNil(t, s.Panel)

	_, ok = m.Get("wrong-token")
	assert.False(t, ok)

	assert.True(t, m.Logout(token))
	_, ok = m.Get(token)
	assert.False(t, ok)
	assert.False(t, m.Logout(token), "second logout is a no-op")
}

func TestLoginSupersedesActiveSession(t *testing.T) {
	srv := newFakeBackend(t, "good")
	m := NewManager(srv.URL, time.Second, 10, time.Hour)
	defer m.Shutdown()

	first, err := m.Login(context.Background(), "good")
	require.NoError(t, err)
	second, err := m.Login(context.Background(), "good")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, ok := m.Get(first)
	assert.False(t, ok, "superseded session token is dead")
	_, ok = m.Get(second)
	assert.True(t, ok)
}

func TestLoginUnreachableBackend(t *testing.T) {
	m := NewManager("http://127.0.0.1:1", 200*time.Millisecond, 10, time.Hour)
	defer m.Shutdown()

	_, err := m.Login(context.Background(), "whatever")
	require.Error(t, err)
	assert.False(t, backend.IsAuthError(err))
}
