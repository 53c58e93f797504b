package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/service"
	"github.com/vaughan-dsouza/usersapi/internal/store"
)

const secret = "handler-secret"

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type env struct {
	t      *testing.T
	router http.Handler
}

func newEnv(t *testing.T, revocations auth.RevocationList, db Pinger) *env {
	t.Helper()

	repo := store.NewMemoryUsers()
	hasher := auth.NewHasher()
	iss, err := auth.NewIssuer(secret, 7*24*time.Hour)
	require.NoError(t, err)
	ver, err := auth.NewVerifier(secret)
	require.NoError(t, err)

	opts := []service.AuthOption{service.WithAdminEmail("root@x.com")}
	if revocations != nil {
		opts = append(opts, service.WithRevocations(revocations))
	}

	h := NewHandler(Deps{
		Auth:        service.NewAuthService(repo, hasher, iss, logging.Nop{}, opts...),
		Users:       service.NewUserService(repo, hasher, logging.Nop{}),
		Verifier:    ver,
		Revocations: revocations,
		DB:          db,
		Logger:      logging.Nop{},
	})
	return &env{t: t, router: h.Routes()}
}

type response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Count   *int              `json:"count"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
	Filters map[string]string `json:"filters"`
}

func (e *env) do(method, path, token string, body any) (int, response) {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec.Code, resp
}

type authData struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

func (e *env) register(name, email, password string) authData {
	e.t.Helper()
	code, resp := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(e.t, http.StatusCreated, code, resp.Message)
	var d authData
	require.NoError(e.t, json.Unmarshal(resp.Data, &d))
	return d
}

func TestRegisterLoginFlow(t *testing.T) {
	e := newEnv(t, nil, nil)

	reg := e.register("X", "x@y.com", "secret1")
	require.Equal(t, "user", reg.Role)
	require.NotEmpty(t, reg.Token)

	code, resp := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "x@y.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "invalid email or password", resp.Message)

	code, resp = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@y.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "invalid email or password", resp.Message)

	code, resp = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "x@y.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	var login authData
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	require.NotEqual(t, reg.Token, login.Token)

	for _, tok := range []string{reg.Token, login.Token} {
		code, resp = e.do(http.MethodGet, "/api/auth/me", tok, nil)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, fmt.Sprintf(`{"id":%d,"email":"x@y.com","role":"user"}`, reg.ID), string(resp.Data))
	}
}

func TestRegister_Failures(t *testing.T) {
	e := newEnv(t, nil, nil)
	e.register("X", "x@y.com", "secret1")

	code, resp := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Y", "email": "x@y.com", "password": "secret2"})
	require.Equal(t, http.StatusConflict, code)
	require.False(t, resp.Success)

	code, resp = e.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "z@y.com", "password": "secret2"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, resp.Errors, "name")

	code, _ = e.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Z", "email": "z@y.com", "password": "secret2", "role": "admin"})
	require.Equal(t, http.StatusForbidden, code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	e := newEnv(t, nil, nil)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/user/all"},
		{http.MethodGet, "/api/user/1"},
		{http.MethodPut, "/api/user/update"},
		{http.MethodDelete, "/api/user/delete"},
		{http.MethodDelete, "/api/user/1"},
	} {
		code, resp := e.do(r.method, r.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, code, r.path)
		require.False(t, resp.Success)
	}
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t, nil, nil)
	admin := e.register("Root", "root@x.com", "secret1")
	user := e.register("U", "u@x.com", "secret1")
	require.Equal(t, "admin", admin.Role)

	code, _ := e.do(http.MethodGet, "/api/user/all", user.Token, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, resp := e.do(http.MethodGet, "/api/user/all", admin.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, *resp.Count)
	require.NotContains(t, string(resp.Data), "password")
	require.Empty(t, resp.Filters)

	code, resp = e.do(http.MethodGet, "/api/user/all?role=user", admin.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, *resp.Count)
	require.Equal(t, "Users filtered by: role", resp.Message)
	require.Equal(t, map[string]string{"role": "user"}, resp.Filters)

	code, resp = e.do(http.MethodGet, "/api/user/all?password_hash=x", admin.Token, nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, resp.Errors, "password_hash")

	code, _ = e.do(http.MethodDelete, fmt.Sprintf("/api/user/%d", admin.ID), user.Token, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(http.MethodDelete, fmt.Sprintf("/api/user/%d", admin.ID), admin.Token, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(http.MethodPut, fmt.Sprintf("/api/user/%d/role", user.ID), admin.Token, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(http.MethodDelete, fmt.Sprintf("/api/user/%d", user.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(http.MethodDelete, fmt.Sprintf("/api/user/%d", user.ID), admin.Token, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestUserSelfRoutes(t *testing.T) {
	e := newEnv(t, nil, nil)
	u := e.register("U", "u@x.com", "secret1")
	e.register("V", "v@x.com", "secret1")

	code, resp := e.do(http.MethodGet, fmt.Sprintf("/api/user/%d", u.ID), u.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotContains(t, string(resp.Data), "password")

	code, _ = e.do(http.MethodGet, "/api/user/abc", u.Token, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(http.MethodGet, "/api/user/999", u.Token, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(http.MethodPut, "/api/user/update", u.Token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(http.MethodPut, "/api/user/update", u.Token, map[string]string{"email": "v@x.com"})
	require.Equal(t, http.StatusConflict, code)

	code, _ = e.do(http.MethodPut, "/api/user/update", u.Token, map[string]string{"password": "brandnew"})
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "u@x.com", "password": "brandnew"})
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(http.MethodDelete, "/api/user/delete", u.Token, nil)
	require.Equal(t, http.StatusOK, code)

	// the token stays valid after deletion; the account does not
	code, _ = e.do(http.MethodGet, fmt.Sprintf("/api/user/%d", u.ID), u.Token, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestLogout(t *testing.T) {
	t.Run("stateless", func(t *testing.T) {
		e := newEnv(t, nil, nil)
		u := e.register("U", "u@x.com", "secret1")

		code, _ := e.do(http.MethodPost, "/api/auth/logout", u.Token, nil)
		require.Equal(t, http.StatusNoContent, code)

		code, _ = e.do(http.MethodGet, "/api/auth/me", u.Token, nil)
		require.Equal(t, http.StatusOK, code)
	})

	t.Run("with revocation", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		e := newEnv(t, auth.NewRedisRevocationList(client), nil)
		u := e.register("U", "u@x.com", "secret1")

		code, _ := e.do(http.MethodPost, "/api/auth/logout", u.Token, nil)
		require.Equal(t, http.StatusNoContent, code)

		code, _ = e.do(http.MethodGet, "/api/auth/me", u.Token, nil)
		require.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil, pingFunc(func(context.Context) error { return nil }))
	code, _ := e.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)

	e = newEnv(t, nil, pingFunc(func(context.Context) error { return errors.New("down") }))
	code, resp := e.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.NotContains(t, resp.Message, "down")
}

func TestWelcome(t *testing.T) {
	e := newEnv(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Welcome to Backend API")
}
