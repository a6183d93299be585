package auth

import (
	"strings"
	"testing"
)

// Cost 4 is the bcrypt minimum and keeps these tests fast.
const testCost = 4

func mustHash(t *testing.T, key string) string {
	t.Helper()
	h, err := HashAPIKey(key, testCost)
	if err != nil {
		t.Fatalf("HashAPIKey() error = %v", err)
	}
	return h
}

// =========================================================================
// HashAPIKey / GenerateAPIKey
// =========================================================================

func TestHashAPIKey_LooksBcrypt(t *testing.T) {
	h := mustHash(t, "key-one")
	if !strings.HasPrefix(h, "$2") {
		t.Errorf("HashAPIKey() does not look like a bcrypt hash: %q", h)
	}
}

func TestHashAPIKey_RejectsLongKey(t *testing.T) {
	if _, err := HashAPIKey(strings.Repeat("k", 73), testCost); err == nil {
		t.Error("HashAPIKey() should reject keys over 72 bytes")
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	a, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	b, _ := GenerateAPIKey()
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	if a == b {
		t.Error("GenerateAPIKey() returned the same key twice")
	}
}

// =========================================================================
// APIKeyValidator
// =========================================================================

func TestNewAPIKeyValidator_EmptyIsNil(t *testing.T) {
	v, err := NewAPIKeyValidator(nil)
	if err != nil {
		t.Fatalf("NewAPIKeyValidator() error = %v", err)
	}
	if v != nil {
		t.Error("NewAPIKeyValidator(nil) should return a nil validator")
	}
}

func TestNewAPIKeyValidator_RejectsPlaintext(t *testing.T) {
	if _, err := NewAPIKeyValidator(map[string]string{"github:1": "not-a-hash"}); err == nil {
		t.Error("NewAPIKeyValidator() should reject values that are not bcrypt hashes")
	}
}

func TestAPIKeyValidator_Validate(t *testing.T) {
	v, err := NewAPIKeyValidator(map[string]string{
		"github:1": mustHash(t, "alpha"),
		"github:2": mustHash(t, "beta"),
	})
	if err != nil {
		t.Fatalf("NewAPIKeyValidator() error = %v", err)
	}

	uid, err := v.Validate("beta")
	if err != nil {
		t.Fatalf("Validate(beta) error = %v", err)
	}
	if uid != "github:2" {
		t.Errorf("Validate(beta) = %q, want github:2", uid)
	}

	for _, bad := range []string{"gamma", "", strings.Repeat("a", 80)} {
		if _, err := v.Validate(bad); err == nil {
			t.Errorf("Validate(%q) should fail", bad)
		}
	}
}
