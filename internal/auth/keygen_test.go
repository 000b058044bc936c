package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey_Live(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey(EnvLive)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(key.Plaintext, "gf_live_") {
		t.Errorf("Key should start with gf_live_, got: %s", key.Plaintext)
	}

	if len(key.Prefix) != KeyPrefixLen {
		t.Errorf("Prefix should be %d chars, got: %d", KeyPrefixLen, len(key.Prefix))
	}

	if key.Hash == "" {
		t.Error("Hash should not be empty")
	}
	if !strings.HasPrefix(key.Hash, "$argon2id$v=") {
		t.Errorf("Hash should be in PHC format, got: %s", key.Hash)
	}

	if !strings.Contains(key.Plaintext, key.Prefix) {
		t.Error("Plaintext should contain prefix")
	}
}

func TestGenerateAPIKey_Test(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey(EnvTest)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(key.Plaintext, "gf_test_") {
		t.Errorf("Key should start with gf_test_, got: %s", key.Plaintext)
	}
}

func TestGenerateAPIKey_DefaultsToLive(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey("bogus")
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}
	if !strings.HasPrefix(key.Plaintext, "gf_live_") {
		t.Errorf("Unknown env should default to live, got: %s", key.Plaintext)
	}
}

func TestParseAPIKey(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey(EnvLive)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	parsed, err := ParseAPIKey(key.Plaintext)
	if err != nil {
		t.Fatalf("ParseAPIKey failed: %v", err)
	}

	if parsed.Env != EnvLive {
		t.Errorf("Env = %s, want live", parsed.Env)
	}
	if parsed.Prefix != key.Prefix {
		t.Errorf("Prefix = %s, want %s", parsed.Prefix, key.Prefix)
	}
	if len(parsed.Secret) != KeySecretLen {
		t.Errorf("Secret length = %d, want %d", len(parsed.Secret), KeySecretLen)
	}
}

func TestParseAPIKey_InvalidFormats(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"",
		"gf_live_short",
		"pk_live_abcdef_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b",              // wrong product prefix
		"gf_prod_abcdef_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b",              // invalid env
		"gf_live_ABCDEF_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b",              // uppercase prefix
		"gf_live_abcdef_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1",               // short secret
		"Bearer gf_live_abcdef_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b",       // header junk
	}

	for _, key := range invalid {
		if _, err := ParseAPIKey(key); err == nil {
			t.Errorf("ParseAPIKey(%q) should fail", key)
		}
		if ValidateKeyFormat(key) {
			t.Errorf("ValidateKeyFormat(%q) should be false", key)
		}
	}
}

func TestVerifyKey_RoundTrip(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey(EnvLive)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	match, err := VerifyKey(key.Plaintext, key.Hash)
	if err != nil {
		t.Fatalf("VerifyKey failed: %v", err)
	}
	if !match {
		t.Error("key should verify against its own hash")
	}

	match, err = VerifyKey(key.Plaintext+"x", key.Hash)
	if err != nil {
		t.Fatalf("VerifyKey failed: %v", err)
	}
	if match {
		t.Error("tampered key should not verify")
	}
}

func TestVerifyKey_MalformedHash(t *testing.T) {
	t.Parallel()

	if _, err := VerifyKey("gf_live_abcdef_00000000000000000000000000000000", "not-a-phc-string"); err == nil {
		t.Error("malformed hash should return an error")
	}
}

func TestQuickHash(t *testing.T) {
	t.Parallel()

	h1 := QuickHash("gf_live_abcdef_00000000000000000000000000000000")
	h2 := QuickHash("gf_live_abcdef_00000000000000000000000000000000")
	h3 := QuickHash("different")

	if h1 != h2 {
		t.Error("QuickHash should be deterministic")
	}
	if h1 == h3 {
		t.Error("different inputs should hash differently")
	}
	if len(h1) != 32 {
		t.Errorf("QuickHash should be 32 hex chars, got %d", len(h1))
	}
}
