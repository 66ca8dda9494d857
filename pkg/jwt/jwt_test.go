package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestManager() *Manager {
	return NewManager("test-signing-key", "payhub-test", 15*time.Minute, 24*time.Hour, time.Hour)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	m := newTestManager()
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, userID)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("token type = %q, want %q", claims.TokenType, TokenTypeAccess)
	}
	if claims.ID == "" {
		t.Error("expected a JTI")
	}
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	m := newTestManager()

	token, claims, err := m.GenerateRefreshToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected a JTI in returned claims")
	}

	parsed, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if parsed.ID != claims.ID {
		t.Errorf("parsed JTI %q does not match issued JTI %q", parsed.ID, claims.ID)
	}
	if parsed.TokenType != TokenTypeRefresh {
		t.Errorf("token type = %q, want %q", parsed.TokenType, TokenTypeRefresh)
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	m := newTestManager()
	other := NewManager("other-key", "payhub-test", time.Minute, time.Minute, time.Minute)

	token, err := m.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := other.Validate(token); err == nil {
		t.Error("expected validation to fail with a different signing key")
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	m := newTestManager()
	other := NewManager("test-signing-key", "someone-else", time.Minute, time.Minute, time.Minute)

	token, err := other.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := m.Validate(token); err == nil {
		t.Error("expected validation to fail for a foreign issuer")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-signing-key", "payhub-test", -time.Minute, time.Minute, time.Minute)

	token, err := m.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := m.Validate(token); err == nil {
		t.Error("expected validation to fail for an expired token")
	}
}
