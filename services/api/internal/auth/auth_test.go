package auth

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func testIssuer() *Issuer {
	return &Issuer{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		BcryptCost: 4,
	}
}

func TestIssueAndParse(t *testing.T) {
	iss := testIssuer()
	tokens, err := iss.Issue("user-1", "customer")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := iss.Parse(tokens.Access, "access")
	if err != nil {
		t.Fatalf("parse access failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "customer" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	if _, err := iss.Parse(tokens.Refresh, "refresh"); err != nil {
		t.Errorf("parse refresh failed: %v", err)
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	iss := testIssuer()
	tokens, err := iss.Issue("user-1", "customer")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// A refresh token must not be accepted where an access token is expected.
	if _, err := iss.Parse(tokens.Refresh, "access"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	iss := testIssuer()
	iss.AccessTTL = -time.Minute
	tokens, err := iss.Issue("user-1", "customer")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := iss.Parse(tokens.Access, "access"); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	iss := testIssuer()
	tokens, err := iss.Issue("user-1", "customer")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := testIssuer()
	other.Secret = []byte("another-secret")
	if _, err := other.Parse(tokens.Access, "access"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	iss := testIssuer()
	hash, err := iss.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CheckPassword("hunter2hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong-password", hash) {
		t.Error("wrong password accepted")
	}
}

func TestNewResetToken(t *testing.T) {
	token, digest, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if HashToken(token) != digest {
		t.Error("digest does not match token")
	}

	token2, _, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken failed: %v", err)
	}
	if token2 == token {
		t.Error("two tokens should not collide")
	}
}

func TestNewOTP(t *testing.T) {
	code, digest, session, err := NewOTP()
	if err != nil {
		t.Fatalf("NewOTP failed: %v", err)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Errorf("code %q is not 6 digits", code)
	}
	if HashToken(code) != digest {
		t.Error("digest does not match code")
	}
	if session == "" {
		t.Error("empty session token")
	}
}
