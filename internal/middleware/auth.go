package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropserve/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// requesterKey is the context key for the authenticated requester.
const requesterKey contextKey = "requester"

// Requester is the resolved identity of the caller, injected into the
// request context by the auth middleware.
type Requester struct {
	ID       string
	Username string
	IsAdmin  bool
}

// TokenResolver resolves a static API token to a requester. Programmatic
// clients (upload tools, scripts) send their account token instead of a
// session JWT; both arrive in the same Authorization header.
type TokenResolver func(ctx context.Context, token string) (*Requester, error)

// RequesterFrom extracts the authenticated requester from the context.
func RequesterFrom(ctx context.Context) (*Requester, bool) {
	req, ok := ctx.Value(requesterKey).(*Requester)
	return req, ok && req != nil
}

// RequireAuth returns middleware that authenticates the request via a
// Bearer JWT or a static API token and injects the requester into the
// request context. Requests without a valid credential are rejected.
func RequireAuth(jwtSecret string, resolve TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requester := authenticate(r, jwtSecret, resolve)
			if requester == nil {
				response.Unauthorized(w, "invalid or missing credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), requesterKey, requester)))
		})
	}
}

// OptionalAuth is like RequireAuth but lets unauthenticated requests
// through without a requester in the context. Download routes use it:
// public files need no credential, private ones are checked downstream.
func OptionalAuth(jwtSecret string, resolve TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requester := authenticate(r, jwtSecret, resolve); requester != nil {
				r = r.WithContext(context.WithValue(r.Context(), requesterKey, requester))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate tries the JWT path first, then falls back to a static API
// token lookup. Returns nil when neither credential checks out.
func authenticate(r *http.Request, jwtSecret string, resolve TokenResolver) *Requester {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil
	}

	credential := authHeader
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		credential = parts[1]
	}

	if requester := fromJWT(credential, jwtSecret); requester != nil {
		return requester
	}

	if resolve != nil {
		if requester, err := resolve(r.Context(), credential); err == nil {
			return requester
		}
	}
	return nil
}

// fromJWT validates a session token and builds a requester from its claims.
func fromJWT(tokenString, jwtSecret string) *Requester {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	userID, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	isAdmin, _ := claims["isAdmin"].(bool)
	if userID == "" {
		return nil
	}

	return &Requester{ID: userID, Username: username, IsAdmin: isAdmin}
}
