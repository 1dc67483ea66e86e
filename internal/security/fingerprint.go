package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenFingerprint returns a hex SHA-256 of token. Used wherever a token must
// be referenced (activity logs, comparisons) without exposing it.
func TokenFingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual compares the fingerprint of providedToken with storedFingerprint in constant time.
func FingerprintEqual(providedToken, storedFingerprint string) bool {
	if providedToken == "" || storedFingerprint == "" {
		return false
	}
	provided := TokenFingerprint(providedToken)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(storedFingerprint)) == 1
}
