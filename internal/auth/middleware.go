package auth

import (
	"context"
	"errors"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// ContextKeyAdmin marks a request context as authenticated admin.
const ContextKeyAdmin contextKey = "admin"

var (
	// ErrMissingToken is returned when the request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when the token does not match the admin key.
	ErrInvalidToken = errors.New("invalid token")
)

// Authenticator checks bearer tokens against the admin key hash.
type Authenticator struct {
	adminHash string
}

// NewAuthenticator hashes adminKey once; an empty key disables admin access.
func NewAuthenticator(adminKey string) (*Authenticator, error) {
	if adminKey == "" {
		return &Authenticator{}, nil
	}
	hash, err := HashAPIKey(adminKey)
	if err != nil {
		return nil, err
	}
	return &Authenticator{adminHash: hash}, nil
}

// Authenticate validates the Authorization header value.
func (a *Authenticator) Authenticate(authHeader string) error {
	token := ExtractBearerToken(authHeader)
	if token == "" {
		return ErrMissingToken
	}
	if a.adminHash == "" || !VerifyAPIKey(token, a.adminHash) {
		return ErrInvalidToken
	}
	return nil
}

// RequireAdmin is a middleware that rejects requests without the admin token.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Authenticate(r.Header.Get("Authorization")); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyAdmin, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IsAdmin reports whether ctx passed RequireAdmin.
func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(ContextKeyAdmin).(bool)
	return ok
}
