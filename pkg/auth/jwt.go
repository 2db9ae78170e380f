// Package auth verifies bearer tokens issued by the account service and puts
// the caller's identity on the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmehra2102/storefront/pkg/apperr"
	"github.com/dmehra2102/storefront/pkg/httpx"
	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

type User struct {
	ID   string
	Role string
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

type Verifier struct {
	log    *slog.Logger
	secret []byte
}

func NewVerifier(log *slog.Logger, secret string) *Verifier {
	return &Verifier{log: log, secret: []byte(secret)}
}

// Parse validates an HS256 token and extracts the id and role claims.
func (v *Verifier) Parse(token string) (User, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return User{}, err
	}

	id, _ := claims["id"].(string)
	if id == "" {
		return User{}, errors.New("token has no id claim")
	}
	role, _ := claims["role"].(string)
	return User{ID: id, Role: role}, nil
}

// Require rejects requests without a valid bearer token.
func (v *Verifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httpx.WriteError(w, r, v.log, apperr.Unauthorized("Authorization token missing or malformed"))
			return
		}
		u, err := v.Parse(strings.TrimSpace(token))
		if err != nil {
			httpx.WriteError(w, r, v.log, apperr.Wrap(apperr.KindUnauthorized, "Invalid or expired token", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAdmin must run after Require.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok || !u.IsAdmin() {
			httpx.WriteError(w, r, v.log, apperr.Unauthorized("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sign issues a token for u. Used by tests and local tooling.
func (v *Verifier) Sign(u User) (string, error) {
	claims := jwt.MapClaims{"id": u.ID}
	if u.Role != "" {
		claims["role"] = u.Role
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}
