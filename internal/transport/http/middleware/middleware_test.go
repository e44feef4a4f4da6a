package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lms/internal/domain/auth"
)

func TestRequestIDPassthrough(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-abc" {
		t.Errorf("context request id = %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != "req-abc" {
		t.Errorf("response header = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Error("no request id generated")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("header and context ids differ")
	}
}

func authState(t *testing.T, header string) (auth.UserContext, bool) {
	t.Helper()
	var (
		user auth.UserContext
		ok   bool
	)
	h := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok = GetUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return user, ok
}

func TestAuthValidToken(t *testing.T) {
	token, err := auth.GenerateToken("secret", auth.Claims{
		UserID: "u-1", RoleID: "r-1", RoleName: auth.RoleEmployee,
	}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	user, ok := authState(t, "Bearer "+token)
	if !ok {
		t.Fatal("no user in context")
	}
	if user.UserID != "u-1" || user.RoleID != "r-1" || user.RoleName != auth.RoleEmployee {
		t.Errorf("user = %+v", user)
	}
}

func TestAuthPassesThroughUnauthenticated(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"malformed header", "Token abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := authState(t, tc.header); ok {
				t.Error("unauthenticated request got a user context")
			}
		})
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("other-secret", auth.Claims{UserID: "u-1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := authState(t, "Bearer "+token); ok {
		t.Error("token signed with another secret accepted")
	}
}

type fakePermStore struct {
	allowed map[string]bool
	err     error
}

func (f *fakePermStore) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[roleID+"|"+permission], nil
}

func permRequest(t *testing.T, store PermissionStore, withUser bool) *httptest.ResponseRecorder {
	t.Helper()
	var called bool
	h := RequirePermission("leave:read", store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if withUser {
		ctx := context.WithValue(req.Context(), ctxKeyUser, auth.UserContext{UserID: "u-1", RoleID: "r-1"})
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK && called {
		t.Error("handler ran despite rejection")
	}
	return rec
}

func TestRequirePermission(t *testing.T) {
	granted := &fakePermStore{allowed: map[string]bool{"r-1|leave:read": true}}

	if rec := permRequest(t, granted, true); rec.Code != http.StatusOK {
		t.Errorf("granted permission: status %d", rec.Code)
	}
	if rec := permRequest(t, &fakePermStore{}, true); rec.Code != http.StatusForbidden {
		t.Errorf("missing permission: status %d", rec.Code)
	}
	if rec := permRequest(t, granted, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("no user: status %d", rec.Code)
	}

	rec := permRequest(t, &fakePermStore{err: errors.New("db down")}, true)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("store error: status %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Error.Code != "permission_error" {
		t.Errorf("body = %+v", body)
	}
}
