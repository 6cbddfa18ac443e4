package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	InitJWT("test-secret-key")

	uid := 1
	username := "testuser"
	expireAt := time.Now().Add(24 * time.Hour)
	issuer := "agenthub"

	token, err := GenerateToken(uid, username, false, TokenTypeAccess, expireAt, issuer)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	if token == "" {
		t.Error("Expected non-empty token")
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() failed: %v", err)
	}

	if claims.UID != uid {
		t.Errorf("Expected UID %d, got %d", uid, claims.UID)
	}

	if claims.Username != username {
		t.Errorf("Expected username %s, got %s", username, claims.Username)
	}

	if claims.TokenType != TokenTypeAccess {
		t.Errorf("Expected token type %s, got %s", TokenTypeAccess, claims.TokenType)
	}

	if claims.Issuer != issuer {
		t.Errorf("Expected issuer %s, got %s", issuer, claims.Issuer)
	}

	if claims.ID == "" {
		t.Error("Expected non-empty token ID")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	InitJWT("test-secret-key")

	_, err := ParseToken("invalid.token.string")
	if err == nil {
		t.Error("ParseToken() should fail for invalid token")
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	InitJWT("test-secret-key")

	token, err := GenerateToken(1, "testuser", false, TokenTypeAccess, time.Now().Add(-time.Hour), "agenthub")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	_, err = ParseToken(token)
	if err == nil {
		t.Error("ParseToken() should fail for expired token")
	}
}

func TestGenerateTokenPair(t *testing.T) {
	InitJWT("test-secret-key")

	pair, err := GenerateTokenPair(7, "alice", true, time.Hour, 7*24*time.Hour, "agenthub")
	if err != nil {
		t.Fatalf("GenerateTokenPair() failed: %v", err)
	}

	accessClaims, err := ParseAccessToken(pair.Access)
	if err != nil {
		t.Fatalf("ParseAccessToken() failed: %v", err)
	}
	if accessClaims.UID != 7 || !accessClaims.IsSuperuser {
		t.Errorf("Unexpected access claims: %+v", accessClaims)
	}

	refreshClaims, err := ParseRefreshToken(pair.Refresh)
	if err != nil {
		t.Fatalf("ParseRefreshToken() failed: %v", err)
	}
	if refreshClaims.TokenType != TokenTypeRefresh {
		t.Errorf("Expected refresh token type, got %s", refreshClaims.TokenType)
	}

	// Cross-type parsing must be rejected
	if _, err := ParseAccessToken(pair.Refresh); err == nil {
		t.Error("ParseAccessToken() should reject a refresh token")
	}
	if _, err := ParseRefreshToken(pair.Access); err == nil {
		t.Error("ParseRefreshToken() should reject an access token")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	InitJWT("secret-one")
	token, err := GenerateToken(1, "testuser", false, TokenTypeAccess, time.Now().Add(time.Hour), "agenthub")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	InitJWT("secret-two")
	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken() should fail with a different secret")
	}
}
