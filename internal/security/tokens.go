package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"identity-core/internal/platform/apperr"
)

// TokenType tags a token as access or refresh inside its payload.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrWrongTokenType is returned when a token's embedded type does not match the expected kind.
	ErrWrongTokenType = apperr.ErrMalformed.WithDetails("unexpected token type")
	// ErrMissingSecret is returned by NewTokenService when either signing secret is empty.
	ErrMissingSecret = errors.New("security: access and refresh secrets are required")
)

// Identity is the set of identity claims carried by every token.
type Identity struct {
	SubjectID  string
	Email      string
	Role       string
	SubRole    string
	IsVerified bool
	SessionID  string
}

// Claims holds the JWT claims for both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	SubRole    string    `json:"sub_role,omitempty"`
	IsVerified bool      `json:"is_verified"`
	SessionID  string    `json:"session_id,omitempty"`
	Type       TokenType `json:"type"`
}

// Identity returns the identity portion of the claims.
func (c *Claims) Identity() Identity {
	return Identity{
		SubjectID:  c.Subject,
		Email:      c.Email,
		Role:       c.Role,
		SubRole:    c.SubRole,
		IsVerified: c.IsVerified,
		SessionID:  c.SessionID,
	}
}

// TokenPair is the result of Issue. ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// TokenService issues and validates HS256 access and refresh tokens. Each kind
// has its own secret and TTL so a leaked refresh secret cannot mint access tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService returns a TokenService. Both secrets must be non-empty.
func NewTokenService(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// Issue signs an access and a refresh token from the same identity.
func (s *TokenService) Issue(id Identity) (*TokenPair, error) {
	access, err := s.sign(id, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(id, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// Verify validates signature, issuer, expiry and embedded type against kind.
// Expired tokens fail with apperr.KindExpired; everything else with apperr.KindMalformed.
func (s *TokenService) Verify(tokenString string, kind TokenType) (*Claims, error) {
	secret, err := s.secretFor(kind)
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.ErrExpired.WithCause(err)
		}
		return nil, apperr.ErrMalformed.WithCause(err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperr.ErrMalformed
	}
	if claims.Type != kind {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// Refresh verifies a refresh token and mints a new access token with the same
// identity claims. The refresh token itself is not rotated.
func (s *TokenService) Refresh(refreshToken string) (accessToken string, expiresIn int64, err error) {
	claims, err := s.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", 0, err
	}
	accessToken, err = s.sign(claims.Identity(), TokenTypeAccess)
	if err != nil {
		return "", 0, err
	}
	return accessToken, int64(s.accessTTL / time.Second), nil
}

// Decode parses a token without verifying its signature. Returns nil when the
// token is not structurally a JWT with our claims. Never use for authorization.
func (s *TokenService) Decode(tokenString string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

// IsExpired reports whether the decoded expiry has passed. Undecodable tokens
// and tokens without expiry count as expired.
func (s *TokenService) IsExpired(tokenString string) bool {
	return s.RemainingSeconds(tokenString) <= 0
}

// RemainingSeconds returns whole seconds until expiry, or 0.
func (s *TokenService) RemainingSeconds(tokenString string) int64 {
	claims := s.Decode(tokenString)
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

func (s *TokenService) sign(id Identity, kind TokenType) (string, error) {
	secret, err := s.secretFor(kind)
	if err != nil {
		return "", err
	}
	ttl := s.accessTTL
	if kind == TokenTypeRefresh {
		ttl = s.refreshTTL
	}
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   id.SubjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:      id.Email,
		Role:       id.Role,
		SubRole:    id.SubRole,
		IsVerified: id.IsVerified,
		SessionID:  id.SessionID,
		Type:       kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (s *TokenService) secretFor(kind TokenType) ([]byte, error) {
	switch kind {
	case TokenTypeAccess:
		return s.accessSecret, nil
	case TokenTypeRefresh:
		return s.refreshSecret, nil
	default:
		return nil, ErrWrongTokenType
	}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
