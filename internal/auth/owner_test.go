package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newOwner(t *testing.T, password string) *Owner {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return NewOwner(string(hash), "test-secret", time.Hour)
}

func TestLoginAndVerify(t *testing.T) {
	o := newOwner(t, "hunter2")

	token, expires, err := o.Login("hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Fatal("expiry must be in the future")
	}
	if err := o.Verify(token); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, _, err := o.Login("wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("want ErrBadCredentials, got %v", err)
	}
}

func TestLogin_Unconfigured(t *testing.T) {
	o := NewOwner("", "", time.Hour)
	if _, _, err := o.Login("anything"); err == nil {
		t.Fatal("unconfigured owner must not issue tokens")
	}
}

func TestRequireOwner(t *testing.T) {
	o := newOwner(t, "hunter2")
	token, _, err := o.Login("hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var sawOwner bool
	handler := o.RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawOwner = IsOwner(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/owner", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous request: want 401, got %d", rec.Code)
	}

	// Bearer token.
	req := httptest.NewRequest(http.MethodGet, "/owner", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || !sawOwner {
		t.Fatalf("bearer request: code=%d sawOwner=%v", rec.Code, sawOwner)
	}

	// Cookie.
	req = httptest.NewRequest(http.MethodGet, "/owner", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cookie request: want 204, got %d", rec.Code)
	}

	// Garbage token.
	req = httptest.NewRequest(http.MethodGet, "/owner", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: want 401, got %d", rec.Code)
	}
}
