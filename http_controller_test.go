package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	auth "github.com/es-parfumerie/go-auth"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app    *fiber.App
	auther *auth.Auther
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	opts := testOptions()
	auther, _, _ := newTestAuther(t, opts)

	httpAuth := auth.NewHTTPAuthenticator(auther, auther.TokenService(), opts).
		WithLogger(auth.NopLogger{}).
		WithSecureCookies(false)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	server := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return app
	})

	auth.RegisterAuthRoutes(server.Router().Group("/api"),
		auth.WithControllerLogger(auth.NopLogger{}),
		auth.WithAuthenticator(auther),
		auth.WithAccountAdministrator(auther),
		auth.WithRouteAuthenticator(httpAuth),
	)

	return &testServer{app: app, auther: auther}
}

type response struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func (r response) user() map[string]any {
	user, _ := r.body["user"].(map[string]any)
	return user
}

func (s *testServer) request(t *testing.T, method, path, token string, payload any, cookies ...*http.Cookie) response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(router.HeaderAuthorization, "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	res, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	out := response{status: res.StatusCode, cookies: res.Cookies()}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out.body))
	return out
}

func (s *testServer) login(t *testing.T, path, email, password string) string {
	t.Helper()

	res := s.request(t, http.MethodPost, path, "", map[string]any{"email": email, "password": password})
	require.Equal(t, http.StatusOK, res.status, res.body)
	token, _ := res.body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func tokenCookie(cookies []*http.Cookie) *http.Cookie {
	for _, c := range cookies {
		if c.Name == auth.TokenCookieName {
			return c
		}
	}
	return nil
}

func TestHTTPRegisterAndMe(t *testing.T) {
	srv := newTestServer(t)

	res := srv.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Jane",
		"email":    "jane@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	assert.Equal(t, true, res.body["success"])
	assert.Equal(t, "customer", res.user()["role"])
	assert.Nil(t, res.user()["passwordHash"])
	token, _ := res.body["token"].(string)
	require.NotEmpty(t, token)

	me := srv.request(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, me.status, me.body)
	assert.Equal(t, "jane@x.com", me.user()["email"])
	assert.Equal(t, true, me.user()["isActive"])

	anon := srv.request(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, anon.status)
	assert.Equal(t, false, anon.body["success"])
	assert.NotEmpty(t, anon.body["message"])

	dup := srv.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Jane",
		"email":    "jane@x.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, dup.status)
	assert.Equal(t, false, dup.body["success"])

	invalid := srv.request(t, http.MethodPost, "/api/auth/register", "", map[string]any{"password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, invalid.status)
}

func TestHTTPLoginSetsCookie(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.auther.Register(t.Context(), "Jane", "jane@x.com", "secret1")
	require.NoError(t, err)

	bad := srv.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "jane@x.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, bad.status)
	assert.Equal(t, "invalid email or password", bad.body["message"])

	res := srv.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "jane@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, res.status, res.body)

	cookie := tokenCookie(res.cookies)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, res.body["token"], cookie.Value)

	me := srv.request(t, http.MethodGet, "/api/auth/me", "", nil, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	assert.Equal(t, http.StatusOK, me.status)
}

func TestHTTPProfileAndPassword(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.auther.Register(t.Context(), "Jane", "jane@x.com", "secret1")
	require.NoError(t, err)
	token := srv.login(t, "/api/auth/login", "jane@x.com", "secret1")

	res := srv.request(t, http.MethodPut, "/api/auth/profile", token, map[string]any{
		"phone":      "06 12 34 56 78",
		"postalCode": "75001",
	})
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "+33612345678", res.user()["phone"])
	assert.Equal(t, "75001", res.user()["postalCode"])

	res = srv.request(t, http.MethodPut, "/api/auth/password", token, map[string]any{
		"currentPassword": "wrong-pw",
		"newPassword":     "secret2",
	})
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = srv.request(t, http.MethodPut, "/api/auth/password", token, map[string]any{
		"currentPassword": "secret1",
		"newPassword":     "secret2",
	})
	assert.Equal(t, http.StatusOK, res.status)

	srv.login(t, "/api/auth/login", "jane@x.com", "secret2")
}

func TestHTTPAdminRoutes(t *testing.T) {
	srv := newTestServer(t)

	jane, err := srv.auther.Register(t.Context(), "Jane", "jane@x.com", "secret1")
	require.NoError(t, err)

	denied := srv.request(t, http.MethodGet, "/api/admin/users", jane.Token, nil)
	assert.Equal(t, http.StatusForbidden, denied.status)
	assert.Equal(t, false, denied.body["success"])

	notAdmin := srv.request(t, http.MethodPost, "/api/auth/admin/login", "", map[string]any{"email": "jane@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, notAdmin.status)

	adminLogin := srv.request(t, http.MethodPost, "/api/auth/admin/login", "", map[string]any{"email": testAdminEmail, "password": "first-login-pw"})
	require.Equal(t, http.StatusOK, adminLogin.status, adminLogin.body)
	assert.Equal(t, []any{"all"}, adminLogin.body["permissions"])
	adminToken, _ := adminLogin.body["token"].(string)

	list := srv.request(t, http.MethodGet, "/api/admin/users?page=1&limit=5", adminToken, nil)
	require.Equal(t, http.StatusOK, list.status, list.body)
	assert.Equal(t, float64(2), list.body["total"])
	assert.Equal(t, float64(5), list.body["limit"])
	users, _ := list.body["users"].([]any)
	assert.Len(t, users, 2)

	customers := srv.request(t, http.MethodGet, "/api/admin/users?role=customer", adminToken, nil)
	require.Equal(t, http.StatusOK, customers.status)
	assert.Equal(t, float64(1), customers.body["total"])

	unknownRole := srv.request(t, http.MethodGet, "/api/admin/users?role=bogus", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, unknownRole.status)
	assert.Equal(t, false, unknownRole.body["success"])
	assert.Equal(t, "invalid request payload", unknownRole.body["message"])

	badPage := srv.request(t, http.MethodGet, "/api/admin/users?page=abc", adminToken, nil)
	require.Equal(t, http.StatusOK, badPage.status)
	assert.Equal(t, float64(1), badPage.body["page"])

	badID := srv.request(t, http.MethodPatch, "/api/admin/users/not-a-uuid/status", adminToken, map[string]any{"isActive": false})
	assert.Equal(t, http.StatusBadRequest, badID.status)

	missing := srv.request(t, http.MethodPatch, "/api/admin/users/"+jane.User.ID+"/status", adminToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, missing.status)

	patched := srv.request(t, http.MethodPatch, "/api/admin/users/"+jane.User.ID+"/status", adminToken, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, patched.status, patched.body)
	assert.Equal(t, false, patched.user()["isActive"])

	disabled := srv.request(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "jane@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, disabled.status)

	stale := srv.request(t, http.MethodGet, "/api/auth/me", jane.Token, nil)
	assert.Equal(t, http.StatusForbidden, stale.status)

	created := srv.request(t, http.MethodPost, "/api/admin/users", adminToken, map[string]any{
		"name":     "Rose",
		"email":    "rose@esparfumerie.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, created.status, created.body)
	assert.Equal(t, "admin", created.user()["role"])

	srv.login(t, "/api/auth/admin/login", "rose@esparfumerie.com", "secret1")
}

func TestHTTPLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	_, client := newRedis(t)
	srv.auther.WithRevocations(auth.NewRedisRevocations(client, ""))

	_, err := srv.auther.Register(t.Context(), "Jane", "jane@x.com", "secret1")
	require.NoError(t, err)
	token := srv.login(t, "/api/auth/login", "jane@x.com", "secret1")

	out := srv.request(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, out.status, out.body)
	assert.Equal(t, true, out.body["success"])

	cleared := tokenCookie(out.cookies)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	me := srv.request(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, me.status)

	anon := srv.request(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, anon.status)
}
