package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"talentvault/internal/config"
)

func newTestService(t *testing.T, key string, ttl time.Duration) *Service {
	t.Helper()
	svc, err := NewService(config.SessionConfig{SigningKey: key, TokenTTL: ttl})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newTestService(t, "test-signing-key", time.Hour)

	token, sessionID, err := svc.IssueToken("alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected non-empty session id")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.SessionID != sessionID {
		t.Fatalf("session id mismatch: %q vs %q", claims.SessionID, sessionID)
	}
}

func TestEachLoginGetsFreshSessionID(t *testing.T) {
	svc := newTestService(t, "test-signing-key", time.Hour)

	_, first, err := svc.IssueToken("alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	_, second, err := svc.IssueToken("alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if first == second {
		t.Fatal("two logins must not share a session id")
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := newTestService(t, "key-one", time.Hour)
	verifier := newTestService(t, "key-two", time.Hour)

	token, _, err := issuer.IssueToken("alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("expected validation failure with a different key")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := newTestService(t, "test-signing-key", time.Hour)

	claims := Claims{
		SessionID: "expired-session",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected validation failure for expired token")
	}
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	svc := newTestService(t, "test-signing-key", time.Hour)
	if _, err := svc.ValidateToken(""); err == nil {
		t.Fatal("expected validation failure for empty token")
	}
}
