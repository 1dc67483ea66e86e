package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"identity-core/internal/platform/apperr"
)

func testIdentity() Identity {
	return Identity{
		SubjectID:  "u1",
		Email:      "a@b.com",
		Role:       "employee",
		SubRole:    "support",
		IsVerified: true,
		SessionID:  "s1",
	}
}

func TestTokenService_IssueAndVerifyRoundTrip(t *testing.T) {
	s := NewTestTokenService()
	id := testIdentity()

	pair, err := s.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("access or refresh token empty")
	}
	if pair.ExpiresIn != 900 {
		t.Errorf("ExpiresIn = %d, want 900", pair.ExpiresIn)
	}

	claims, err := s.Verify(pair.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if got := claims.Identity(); got != id {
		t.Errorf("Identity = %+v, want %+v", got, id)
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("Type = %q, want access", claims.Type)
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}

	refreshClaims, err := s.Verify(pair.RefreshToken, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	if got := refreshClaims.Identity(); got != id {
		t.Errorf("refresh Identity = %+v, want %+v", got, id)
	}
}

func TestTokenService_CrossKindRejected(t *testing.T) {
	s := NewTestTokenService()
	pair, err := s.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Verify(pair.RefreshToken, TokenTypeAccess); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("Verify(refresh, access): want Malformed, got %v", err)
	}
	if _, err := s.Verify(pair.AccessToken, TokenTypeRefresh); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("Verify(access, refresh): want Malformed, got %v", err)
	}
}

func TestTokenService_SharedSecretStillChecksType(t *testing.T) {
	s, err := NewTokenService("same-secret", "same-secret", "iss", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	pair, err := s.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Verify(pair.RefreshToken, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("want ErrWrongTokenType, got %v", err)
	}
	if _, _, err := s.Refresh(pair.AccessToken); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("Refresh(access): want Malformed, got %v", err)
	}
}

func TestTokenService_Expired(t *testing.T) {
	s := NewTestTokenService()
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := s.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s.now = time.Now

	if _, err := s.Verify(pair.AccessToken, TokenTypeAccess); !errors.Is(err, apperr.ErrExpired) {
		t.Errorf("Verify expired: want Expired, got %v", err)
	}
	if !s.IsExpired(pair.AccessToken) {
		t.Error("IsExpired should be true")
	}
	if got := s.RemainingSeconds(pair.AccessToken); got != 0 {
		t.Errorf("RemainingSeconds = %d, want 0", got)
	}
	// Refresh TTL is 24h, so the refresh token is still valid.
	if s.IsExpired(pair.RefreshToken) {
		t.Error("refresh token should not be expired")
	}
}

func TestTokenService_IsExpiredIgnoresSignature(t *testing.T) {
	other, _ := NewTokenService("x", "y", "test-issuer", 15*time.Minute, time.Hour)
	other.now = func() time.Time { return time.Now().Add(-time.Hour) }
	pair, err := other.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s := NewTestTokenService()
	if !s.IsExpired(pair.AccessToken) {
		t.Error("IsExpired should be true for an expired token signed with another secret")
	}
	if _, err := s.Verify(pair.AccessToken, TokenTypeAccess); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("Verify foreign token: want Malformed, got %v", err)
	}
}

func TestTokenService_Refresh(t *testing.T) {
	s := NewTestTokenService()
	id := testIdentity()
	pair, err := s.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	access, expiresIn, err := s.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if expiresIn != 900 {
		t.Errorf("expiresIn = %d, want 900", expiresIn)
	}
	claims := s.Decode(access)
	if claims == nil {
		t.Fatal("Decode returned nil")
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("Type = %q, want access", claims.Type)
	}
	if got := claims.Identity(); got != id {
		t.Errorf("Identity = %+v, want %+v", got, id)
	}
	if _, err := s.Verify(access, TokenTypeAccess); err != nil {
		t.Errorf("refreshed access token should verify: %v", err)
	}
}

func TestTokenService_VerifyInvalid(t *testing.T) {
	s := NewTestTokenService()
	for _, tok := range []string{"", "invalid-token", "a.b.c"} {
		if _, err := s.Verify(tok, TokenTypeAccess); !errors.Is(err, apperr.ErrMalformed) {
			t.Errorf("Verify(%q): want Malformed, got %v", tok, err)
		}
	}
}

func TestTokenService_VerifyWrongIssuer(t *testing.T) {
	other, _ := NewTokenService(testAccessSecret, testRefreshSecret, "someone-else", time.Minute, time.Hour)
	pair, err := other.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s := NewTestTokenService()
	if _, err := s.Verify(pair.AccessToken, TokenTypeAccess); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("want Malformed for wrong issuer, got %v", err)
	}
}

func TestTokenService_DecodeGarbage(t *testing.T) {
	s := NewTestTokenService()
	if c := s.Decode("not-a-jwt"); c != nil {
		t.Errorf("Decode garbage = %+v, want nil", c)
	}
	if !s.IsExpired("not-a-jwt") {
		t.Error("IsExpired(garbage) should be true")
	}
}

func TestTokenService_RemainingSeconds(t *testing.T) {
	s := NewTestTokenService()
	pair, _ := s.Issue(testIdentity())
	got := s.RemainingSeconds(pair.AccessToken)
	if got < 890 || got > 900 {
		t.Errorf("RemainingSeconds = %d, want ~900", got)
	}
}

func TestNewTokenService_MissingSecret(t *testing.T) {
	if _, err := NewTokenService("", "r", "iss", time.Minute, time.Hour); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("want ErrMissingSecret, got %v", err)
	}
	if _, err := NewTokenService("a", "", "iss", time.Minute, time.Hour); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("want ErrMissingSecret, got %v", err)
	}
}

func TestTokenService_TokensAreUnique(t *testing.T) {
	s := NewTestTokenService()
	a, _ := s.Issue(testIdentity())
	b, _ := s.Issue(testIdentity())
	if a.AccessToken == b.AccessToken || strings.EqualFold(a.RefreshToken, b.RefreshToken) {
		t.Error("each issuance should mint new tokens")
	}
}
