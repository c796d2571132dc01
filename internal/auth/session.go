package auth

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// TokenClaims are the claims embedded in the self-issued access token
// (spec §4.2: `{sub: username, sid: session_id, exp}`).
type TokenClaims struct {
	Subject   string `json:"sub"`
	SessionID string `json:"sid"`
}

// SessionManager issues and validates self-signed access tokens using
// HMAC-SHA256, grounded on the teacher's go-jose based session scheme.
type SessionManager struct {
	signingKey []byte
}

// NewSessionManager creates a session manager. The secret must be at least
// 32 bytes to provide an adequate HMAC key.
func NewSessionManager(secret string) (*SessionManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	return &SessionManager{signingKey: []byte(secret)}, nil
}

// IssueToken creates a signed JWT with the given subject/session and expiry.
func (sm *SessionManager) IssueToken(username, sessionID string, expiresAt time.Time) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: sm.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "planningserver",
	}
	custom := TokenClaims{Subject: username, SessionID: sessionID}

	token, err := jwt.Signed(signer).Claims(registered).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies the JWT signature and expiry and returns the claims.
// It does not resolve the session — the caller must still check the
// session's validity invariant (§3) against the store.
func (sm *SessionManager) ValidateToken(raw string) (*TokenClaims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	var custom TokenClaims
	if err := tok.Claims(sm.signingKey, &registered, &custom); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: "planningserver",
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return nil, fmt.Errorf("validating claims: %w", err)
	}

	return &custom, nil
}
