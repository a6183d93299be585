package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is package-private so no other package can read or shadow the
// uid stored in a request context.
type contextKey string

const userIDKey contextKey = "userID"

const (
	// CookieName is the session cookie written by the OAuth callback.
	CookieName = "token"

	// APIKeyHeader carries a static API key for scripts and the CLI.
	APIKeyHeader = "X-API-Key"
)

var errNoCredentials = errors.New("auth: no credentials")

// Authenticator resolves a request to an external uid. Either field may be
// nil; a nil TokenService disables JWTs and a nil APIKeyValidator disables
// API keys.
type Authenticator struct {
	Tokens *TokenService
	Keys   *APIKeyValidator
}

// RequireAuth rejects requests without a valid credential with a 401 JSON
// body and stores the caller's uid in the context otherwise.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp,
// so handlers behind this one can always call UserIDFromContext.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := a.Authenticate(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

// Authenticate tries the bearer header, then the session cookie, then the
// API key header. The first credential present decides the outcome; a bad
// bearer token is not rescued by a good cookie.
func (a Authenticator) Authenticate(r *http.Request) (string, error) {
	if a.Tokens != nil {
		if token, ok := bearerToken(r); ok {
			return a.Tokens.Validate(token)
		}
		if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
			return a.Tokens.Validate(cookie.Value)
		}
	}
	if a.Keys != nil {
		if key := r.Header.Get(APIKeyHeader); key != "" {
			return a.Keys.Validate(key)
		}
	}
	return "", errNoCredentials
}

// WithUserID returns a context carrying uid. Handler tests use it to skip the
// middleware.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
