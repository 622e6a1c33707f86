// Package auth guards the owner dashboard. There is exactly one owner
// account, configured through the environment as a bcrypt hash.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/myasnails/salonbook/libs/auth"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("bad credentials")

const (
	SessionCookie = "salonbook_session"
	RoleOwner     = "owner"
)

type ctxKey struct{}

type Owner struct {
	passwordHash string
	tokenSecret  string
	tokenTTL     time.Duration
}

func NewOwner(passwordHash, tokenSecret string, tokenTTL time.Duration) *Owner {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Owner{
		passwordHash: passwordHash,
		tokenSecret:  tokenSecret,
		tokenTTL:     tokenTTL,
	}
}

// Login checks the password against the configured hash and issues a session
// token.
func (o *Owner) Login(password string) (string, time.Time, error) {
	if o.passwordHash == "" || o.tokenSecret == "" {
		return "", time.Time{}, errors.New("owner auth not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(o.passwordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrBadCredentials
	}

	now := time.Now()
	expires := now.Add(o.tokenTTL)
	token, err := auth.SignHS256(auth.Claims{
		Sub:  RoleOwner,
		Role: RoleOwner,
		Iat:  now.Unix(),
		Exp:  expires.Unix(),
	}, o.tokenSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Verify accepts a raw session token and returns nil when it names the owner.
func (o *Owner) Verify(token string) error {
	claims, err := auth.ParseAndVerifyHS256(token, o.tokenSecret)
	if err != nil {
		return err
	}
	if claims.Role != RoleOwner {
		return auth.ErrInvalidToken
	}
	return nil
}

// RequireOwner rejects requests that carry no valid owner session, looking at
// the session cookie first and a bearer token second.
func (o *Owner) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" || o.Verify(token) != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, RoleOwner)))
	})
}

// IsOwner reports whether the request context passed RequireOwner.
func IsOwner(ctx context.Context) bool {
	role, _ := ctx.Value(ctxKey{}).(string)
	return role == RoleOwner
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
