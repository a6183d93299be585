// Package auth identifies the caller of the progress API.
//
// Three credentials are accepted, checked in this order by RequireAuth:
//
//  1. "Authorization: Bearer <jwt>" for the CLI and other API clients
//  2. the "token" HttpOnly cookie set by the GitHub OAuth callback
//  3. "X-API-Key: <key>", matched against bcrypt hashes from configuration
//
// Every credential resolves to the same thing: the external uid the profile
// store is keyed by (e.g. "github:1234567").
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The user opens /auth/github/login and is redirected to GitHub
//  2. GitHub calls /auth/github/callback with a one-time code
//  3. The server exchanges the code, resolves "github:<id>" and makes sure a
//     profile exists (the first sign-in earns the first-login bonus)
//  4. A JWT is issued, set as an HttpOnly cookie, and returned in the body
//     when the client asked for JSON (this is how the CLI picks it up)
//  5. Later requests present it as a cookie or bearer header; RequireAuth
//     validates it and puts the uid in the request context
//
// STATELESS TOKENS:
// JWTs are HS256-signed. The subject claim carries the uid, so validating a
// token needs only the secret and no store lookup:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"sub":"github:1234567","iss":"cmdshift-learn","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// Rotating JWT_SECRET logs every session out; API keys are unaffected.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "cmdshift-learn"

	// DefaultTokenTTL is how long a session token stays valid.
	DefaultTokenTTL = 24 * time.Hour
)

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; use something like `openssl rand -hex 32` in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: DefaultTokenTTL}, nil
}

// TTL is the lifetime of tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate issues a token for uid valid for TTL().
func (s *TokenService) Generate(uid string) (string, error) {
	return s.GenerateWithDuration(uid, s.ttl)
}

// GenerateWithDuration issues a token for uid valid for d. A negative d
// produces an already expired token, which tests use.
func (s *TokenService) GenerateWithDuration(uid string, d time.Duration) (string, error) {
	if uid == "" {
		return "", errors.New("auth: cannot issue a token without a subject")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenStr and returns the uid in its subject claim.
//
// VALIDATION CHECKS:
//   - the signature matches the secret
//   - the algorithm is HS256; "none" and RSA keys are refused
//   - the issuer is "cmdshift-learn"
//   - an expiry is present and in the future
//   - the subject is not empty
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject "alg: none" and RSA/HMAC confusion before handing out the key.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
