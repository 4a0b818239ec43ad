package myMiddleware

import (
	"context"
	"net/http"
	"strings"
)

// 1. Define Context Keys (Exported so other packages can read them)
type contextKey string

const (
	UserKey     contextKey = "user_id"
	UsernameKey contextKey = "username"
)

// 2. Define what we need from the User Service
// This interface decouples 'middleware' from 'user'
type TokenValidator interface {
	ValidateToken(tokenString string) (string, string, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle accepts a bearer token or, for websocket upgrades that cannot set
// headers, a ?token= query parameter.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if scheme, token, ok := strings.Cut(authHeader, " "); ok && strings.EqualFold(scheme, "Bearer") {
			tokenString = strings.TrimSpace(token)
		}

		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		memberID, username, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), memberID, username)))
	})
}

// WithMember stores the authenticated member in ctx.
func WithMember(ctx context.Context, memberID, username string) context.Context {
	ctx = context.WithValue(ctx, UserKey, memberID)
	return context.WithValue(ctx, UsernameKey, username)
}

// MemberFrom reads what Handle stored.
func MemberFrom(ctx context.Context) (string, string, bool) {
	memberID, ok := ctx.Value(UserKey).(string)
	username, ok2 := ctx.Value(UsernameKey).(string)
	if !ok || !ok2 || memberID == "" {
		return "", "", false
	}
	return memberID, username, true
}
