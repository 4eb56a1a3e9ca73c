package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/middleware"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func resolver(ctx context.Context, token string) (*middleware.Requester, error) {
	if token == "valid-api-token" {
		return &middleware.Requester{ID: "u1", Username: "alice"}, nil
	}
	return nil, context.Canceled
}

func echoRequester(t *testing.T, got **middleware.Requester) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if req, ok := middleware.RequesterFrom(r.Context()); ok {
			*got = req
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_JWT(t *testing.T) {
	var got *middleware.Requester
	h := middleware.RequireAuth(testSecret, resolver)(echoRequester(t, &got))

	token := signToken(t, jwt.MapClaims{
		"sub":      "u42",
		"username": "bob",
		"isAdmin":  true,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	require.Equal(t, "u42", got.ID)
	require.True(t, got.IsAdmin)
}

func TestRequireAuth_APIToken(t *testing.T) {
	var got *middleware.Requester
	h := middleware.RequireAuth(testSecret, resolver)(echoRequester(t, &got))

	// Programmatic clients may send the raw token without the Bearer prefix.
	for _, header := range []string{"Bearer valid-api-token", "valid-api-token"} {
		got = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, got)
		require.Equal(t, "u1", got.ID)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	h := middleware.RequireAuth(testSecret, resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	expired := signToken(t, jwt.MapClaims{
		"sub": "u42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"garbage token", "Bearer not-a-token"},
		{"expired jwt", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestOptionalAuth_PassesAnonymousThrough(t *testing.T) {
	var got *middleware.Requester
	h := middleware.OptionalAuth(testSecret, resolver)(echoRequester(t, &got))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, got, "anonymous requests carry no requester")
}
