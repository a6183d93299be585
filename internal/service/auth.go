// Package service holds the login flow that sits between the OAuth handler
// and the progress engine:
//
//	AuthHandler (HTTP) → AuthService → progress.Engine (profile store)
//	                   ↘ TokenService (JWT)
//
// It does not set cookies or read requests; those stay in the handler.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/cmdshift-learn/internal/auth"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/progress"
)

// ProfileEnsurer is the part of progress.Engine the login flow needs.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, uid, email string) (*progress.LoginResult, error)
}

// AuthService turns a verified identity into a profile and a session token.
type AuthService struct {
	profiles ProfileEnsurer
	tokens   *auth.TokenService
	logger   *slog.Logger
}

// NewAuthService wires the login flow.
func NewAuthService(profiles ProfileEnsurer, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		profiles: profiles,
		tokens:   tokens,
		logger:   logger,
	}
}

// AuthResult bundles the profile and the issued JWT so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	Profile *model.Profile
	Token   string
	Created bool
}

// LoginWithGitHub creates the profile on first sight (with the first-login
// bonus) and issues a token whose subject is the profile's external uid.
func (s *AuthService) LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	uid := ghUser.UID()

	login, err := s.profiles.EnsureProfile(ctx, uid, ghUser.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: ensuring profile %s: %w", uid, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("uid", uid),
		slog.String("login", ghUser.Login),
		slog.Bool("created", login.Created),
	)

	token, err := s.tokens.Generate(uid)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", uid, err)
	}

	return &AuthResult{
		Profile: login.Profile,
		Token:   token,
		Created: login.Created,
	}, nil
}

// ValidateToken returns the uid a token was issued for.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	uid, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return uid, nil
}
