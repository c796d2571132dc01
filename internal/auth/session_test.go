package auth

import (
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewSessionManager_RejectsShortSecret(t *testing.T) {
	if _, err := NewSessionManager("too-short"); err == nil {
		t.Error("NewSessionManager() error = nil, want error for a secret under 32 bytes")
	}
}

func TestIssueToken_ValidateToken_RoundTrip(t *testing.T) {
	sm, err := NewSessionManager(testSecret)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	token, err := sm.IssueToken("ALICE", "sess-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := sm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "ALICE" || claims.SessionID != "sess-1" {
		t.Errorf("claims = %+v, want Subject=ALICE SessionID=sess-1", claims)
	}
}

func TestValidateToken_RejectsExpiredToken(t *testing.T) {
	sm, err := NewSessionManager(testSecret)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	token, err := sm.IssueToken("ALICE", "sess-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	if _, err := sm.ValidateToken(token); err == nil {
		t.Error("ValidateToken() error = nil, want error for an expired token")
	}
}

func TestValidateToken_RejectsWrongSigningKey(t *testing.T) {
	sm1, err := NewSessionManager(testSecret)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	sm2, err := NewSessionManager("fedcba9876543210fedcba9876543210")
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}

	token, err := sm1.IssueToken("ALICE", "sess-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	if _, err := sm2.ValidateToken(token); err == nil {
		t.Error("ValidateToken() error = nil, want error when verifying with a different key")
	}
}
