package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-fedcba9876543210"
)

// NewTestTokenService returns a TokenService with fixed test secrets, a 15m
// access TTL and a 24h refresh TTL. For unit tests only.
func NewTestTokenService() *TokenService {
	s, _ := NewTokenService(testAccessSecret, testRefreshSecret, "test-issuer", 15*time.Minute, 24*time.Hour)
	return s
}
