package authsvc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	http_ "github.com/mkrupp/homecase-lending/internal/infra/transport/http"
	"github.com/mkrupp/homecase-lending/internal/repo/lending"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc"
)

func newAuthServer(t *testing.T) (*httptest.Server, *authsvc.AuthService) {
	t.Helper()

	repo, err := lending.NewSQLiteRepository(context.Background(), lending.SQLiteRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "lending.db"),
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	svc := authsvc.NewAuthService(repo, authsvc.AuthConfig{
		BcryptCost:  bcrypt.MinCost,
		SessionTTL:  time.Hour,
		AdminName:   "root",
		AdminSecret: "toor",
	})
	require.NoError(t, svc.EnsureAdmin(context.Background()))

	router := http_.NewRouter(svc, http_.HTTPTransportConfig{},
		authsvc.NewHTTPTransport(svc, authsvc.HTTPTransportConfig{}),
	)

	server := httptest.NewServer(http_.TracingMiddleware(router))
	t.Cleanup(server.Close)

	return server, svc
}

func call(t *testing.T, server *httptest.Server, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, server.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw any
		require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&raw))

		decoded, _ = raw.(map[string]any)
	}

	return resp, decoded
}

func login(t *testing.T, server *httptest.Server, name, password string) string {
	t.Helper()

	resp, body := call(t, server, http.MethodPost, "/auth/login", "",
		`{"name":"`+name+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	return token
}

func TestHTTPTransport_RegisterAndLogin(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	resp, body := call(t, server, http.MethodPost, "/auth/register", "", `{"name":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 2, body["accountId"])

	resp, body = call(t, server, http.MethodPost, "/auth/register", "", `{"name":"alice","password":"pw2"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_identity", body["error"].(map[string]any)["code"])
	assert.NotEmpty(t, body["requestId"])

	resp, _ = call(t, server, http.MethodPost, "/auth/register", "", `{"name":"","password":"pw2"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, server, http.MethodPost, "/auth/register", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = call(t, server, http.MethodPost, "/auth/login", "", `{"name":"alice","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credential", body["error"].(map[string]any)["code"])

	resp, body = call(t, server, http.MethodPost, "/auth/login", "", `{"name":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "member", body["role"])

	var cookie *http.Cookie

	for _, c := range resp.Cookies() {
		if c.Name == http_.SessionCookieName {
			cookie = c
		}
	}

	require.NotNil(t, cookie)
	assert.Equal(t, body["token"], cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestHTTPTransport_SessionLifecycle(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	call(t, server, http.MethodPost, "/auth/register", "", `{"name":"alice","password":"pw1"}`)
	token := login(t, server, "alice", "pw1")

	resp, body := call(t, server, http.MethodPost, "/auth/validate", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["name"])
	assert.Equal(t, true, body["active"])

	resp, _ = call(t, server, http.MethodPost, "/auth/validate", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, server, http.MethodPost, "/auth/logout", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the revoked token no longer resolves to a session
	resp, body = call(t, server, http.MethodPost, "/auth/validate", token, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"].(map[string]any)["code"])

	resp, _ = call(t, server, http.MethodPost, "/auth/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPTransport_AdminAccounts(t *testing.T) {
	t.Parallel()

	server, svc := newAuthServer(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	member := login(t, server, "alice", "pw1")
	admin := login(t, server, "root", "toor")

	resp, _ := call(t, server, http.MethodGet, "/admin/accounts", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := call(t, server, http.MethodGet, "/admin/accounts", member, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not_administrator", body["error"].(map[string]any)["code"])

	// authorization is decided before the id is parsed
	resp, _ = call(t, server, http.MethodPost, "/admin/accounts/nope/deactivate", member, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, server, http.MethodPost, "/admin/accounts/nope/deactivate", admin, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, server, http.MethodPost, "/admin/accounts/999/deactivate", admin, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, server, http.MethodPost, "/admin/accounts/"+id.String()+"/deactivate", admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	active, err := svc.IsActive(ctx, id)
	require.NoError(t, err)
	assert.False(t, active)

	principal, ok, err := svc.Validate(ctx, member)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, principal.AccountID)
	assert.False(t, principal.Active)
}

func TestHTTPTransport_UnknownRoute(t *testing.T) {
	t.Parallel()

	server, _ := newAuthServer(t)

	resp, body := call(t, server, http.MethodGet, "/nowhere", "", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, resp.Header.Get(http_.TraceIDHeader), body["requestId"])
}
