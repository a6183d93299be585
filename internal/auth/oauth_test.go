package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

func TestGitHubUser_UID(t *testing.T) {
	u := GitHubUser{ID: 1234567, Login: "octocat"}
	if got := u.UID(); got != "github:1234567" {
		t.Errorf("UID() = %q, want github:1234567", got)
	}
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost:8080/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	if err != nil {
		t.Fatalf("AuthURL() not a URL: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "http://localhost:8080/auth/github/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

// newFakeGitHub serves both the token endpoint and /user.
func newFakeGitHub(t *testing.T, userStatus int, userBody string) *GitHubProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userStatus)
		_, _ = w.Write([]byte(userBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGitHubProvider("id", "secret", "http://localhost/cb")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/login/oauth/authorize",
		TokenURL:  srv.URL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userURL = srv.URL + "/user"
	return p
}

func TestGitHubProvider_Exchange(t *testing.T) {
	p := newFakeGitHub(t, http.StatusOK, `{"id":42,"login":"octocat","email":"octo@example.com","avatar_url":"https://a"}`)

	u, err := p.Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if u.UID() != "github:42" || u.Email != "octo@example.com" {
		t.Errorf("Exchange() = %+v", u)
	}
}

func TestGitHubProvider_ExchangeErrors(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
	}{
		"api failure": {http.StatusInternalServerError, `{}`},
		"zero id":     {http.StatusOK, `{"id":0,"login":"ghost"}`},
		"bad json":    {http.StatusOK, `not json`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := newFakeGitHub(t, tt.status, tt.body)
			if _, err := p.Exchange(context.Background(), "code"); err == nil {
				t.Error("Exchange() should fail")
			}
		})
	}
}
