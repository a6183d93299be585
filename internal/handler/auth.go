package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/cmdshift-learn/internal/auth"
	"github.com/sakif/cmdshift-learn/internal/service"
)

const stateCookie = "oauth_state"

// OAuthProvider is the GitHub side of the login flow.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// LoginService turns a GitHub identity into a profile and a session token.
type LoginService interface {
	LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*service.AuthResult, error)
}

// AuthHandler runs the GitHub OAuth login and session cookie.
type AuthHandler struct {
	github   OAuthProvider
	logins   LoginService
	tokenTTL int // seconds
	secure   bool
	logger   *slog.Logger
}

// NewAuthHandler wires the login flow. secureCookies should be true behind
// HTTPS.
func NewAuthHandler(github OAuthProvider, logins LoginService, tokens *auth.TokenService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		github:   github,
		logins:   logins,
		tokenTTL: int(tokens.TTL().Seconds()),
		secure:   secureCookies,
		logger:   logger,
	}
}

// HandleGitHubLogin redirects the browser to GitHub.
//
// HTTP: GET /auth/github/login
//
// The random state goes into a 10 minute HttpOnly cookie and is checked on
// the callback, which proves the callback was started here.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the login: check state, exchange the code,
// ensure the profile, set the session cookie.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// Browsers get a redirect to "/"; clients sending Accept: application/json
// get the token and profile in the body, which is how the CLI logs in.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != state.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	result, err := h.logins.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   h.tokenTTL,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if r.Header.Get("Accept") == "application/json" {
		writeJSON(w, http.StatusOK, map[string]any{
			"token":   result.Token,
			"created": result.Created,
			"profile": result.Profile,
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout deletes the session cookie. Tokens are stateless, so a copy
// held elsewhere stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
