// Package middleware provides HTTP middleware for page sessions and request logging.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// sessionIDKey is the context key for storing the session ID.
const sessionIDKey ContextKey = "sessionID"

// CookieName is the session cookie.
const CookieName = "tubedigest_session"

// TokenHeader carries the session token for clients that do not keep cookies.
const TokenHeader = "X-Session-Token"

// SessionIDGetter is an interface for extracting the session ID from token claims.
type SessionIDGetter interface {
	GetSessionID() uuid.UUID
}

// TokenService issues and validates session tokens.
// This allows the middleware to work with any token implementation.
type TokenService interface {
	IssueToken(sessionID uuid.UUID) (string, error)
	ValidateToken(tokenString string) (SessionIDGetter, error)
}

// Session creates middleware that resolves the caller's session from the cookie
// or a Bearer token, starting a new session when neither is valid.
func Session(tokens TokenService, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := tokenFromRequest(r); tokenString != "" {
				if claims, err := tokens.ValidateToken(tokenString); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), claims.GetSessionID())))
					return
				}
			}

			sessionID := uuid.New()
			tokenString, err := tokens.IssueToken(sessionID)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    tokenString,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(TokenHeader, tokenString)
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}

// tokenFromRequest reads the cookie first, then an Authorization Bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	// Handle case-insensitive "Bearer" prefix
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// WithSessionID returns a context carrying the session ID.
func WithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// GetSessionID extracts the session ID from the request context.
func GetSessionID(r *http.Request) (uuid.UUID, error) {
	id, ok := r.Context().Value(sessionIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("session ID not found in request context")
	}
	return id, nil
}
