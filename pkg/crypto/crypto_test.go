package crypto

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword("correct horse battery staple", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong password", hash) {
		t.Error("wrong password accepted")
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(32)
	if err != nil {
		t.Fatalf("GenerateRandomString failed: %v", err)
	}
	b, err := GenerateRandomString(32)
	if err != nil {
		t.Fatalf("GenerateRandomString failed: %v", err)
	}
	if a == b {
		t.Error("two random strings are identical")
	}
	if len(a) != 43 { // 32 bytes base64url without padding
		t.Errorf("unexpected length %d", len(a))
	}
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode failed: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code %q has length %d, want 6", code, len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Errorf("code %q contains non-digit %q", code, r)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Error("expected error for zero digits")
	}
}
