package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/bcrypt"
)

const defaultKeyCost = 12

// APIKeyValidator checks X-API-Key values against bcrypt hashes loaded from
// configuration. Keys are never stored in plaintext.
type APIKeyValidator struct {
	uids   []string
	hashes map[string][]byte
}

// NewAPIKeyValidator takes uid → bcrypt hash. It returns nil for an empty
// map, which Authenticator treats as "API keys disabled".
func NewAPIKeyValidator(hashes map[string]string) (*APIKeyValidator, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	v := &APIKeyValidator{hashes: make(map[string][]byte, len(hashes))}
	for uid, hash := range hashes {
		if uid == "" {
			return nil, errors.New("auth: API key with empty user id")
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth: API key for %s is not a bcrypt hash: %w", uid, err)
		}
		v.uids = append(v.uids, uid)
		v.hashes[uid] = []byte(hash)
	}
	// Deterministic order keeps the comparison cost independent of map iteration.
	sort.Strings(v.uids)
	return v, nil
}

// Validate returns the uid whose hash matches key.
func (v *APIKeyValidator) Validate(key string) (string, error) {
	if len(key) == 0 || len(key) > 72 {
		return "", errors.New("auth: invalid API key")
	}
	for _, uid := range v.uids {
		if bcrypt.CompareHashAndPassword(v.hashes[uid], []byte(key)) == nil {
			return uid, nil
		}
	}
	return "", errors.New("auth: invalid API key")
}

// HashAPIKey hashes key for the API_KEYS setting. cost <= 0 uses the default.
func HashAPIKey(key string, cost int) (string, error) {
	if len(key) > 72 {
		// bcrypt silently truncates past 72 bytes.
		return "", fmt.Errorf("auth: API key must be 72 bytes or fewer")
	}
	if cost <= 0 {
		cost = defaultKeyCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing API key: %w", err)
	}
	return string(hashed), nil
}

// GenerateAPIKey returns a random 32-byte key, hex encoded.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generating API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
