package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"identity-core/internal/platform/apperr"
	"identity-core/internal/security"
	sessiondomain "identity-core/internal/session/domain"
	sessionservice "identity-core/internal/session/service"
	userdomain "identity-core/internal/user/domain"
)

// SessionStore is the part of the session store the auth flows need.
type SessionStore interface {
	Create(ctx context.Context, user sessionservice.UserInfo, tokens sessionservice.TokenInfo, req sessionservice.RequestInfo) (*sessiondomain.Session, error)
	Get(ctx context.Context, id string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, id string, details map[string]any) (*sessiondomain.Session, error)
	Logout(ctx context.Context, id string, details map[string]any) (*sessiondomain.Session, error)
}

// LoginResult holds the credential pair and the session it is bound to.
type LoginResult struct {
	User    *userdomain.User
	Tokens  *security.TokenPair
	Session *sessiondomain.Session
}

// RefreshResult holds a freshly minted access token.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
	SessionID   string
}

// AuthService implements password login, token refresh, logout and request authentication.
type AuthService struct {
	users    UserDirectory
	hasher   security.PasswordHasher
	tokens   *security.TokenService
	sessions SessionStore
	log      *slog.Logger
}

// NewAuthService returns an AuthService with the given dependencies. logger may be nil.
func NewAuthService(users UserDirectory, hasher security.PasswordHasher, tokens *security.TokenService, sessions SessionStore, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		log:      logger.With("component", "auth"),
	}
}

// Login authenticates with email and password across every role, issues a
// token pair and opens a session bound to it.
func (s *AuthService) Login(ctx context.Context, email, password string, req sessionservice.RequestInfo) (*LoginResult, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active() || user.Status == userdomain.UserStatusDeleted {
		return nil, ErrAccountInactive
	}

	sessionID := uuid.New().String()
	pair, err := s.tokens.Issue(security.Identity{
		SubjectID:  user.ID,
		Email:      user.Email,
		Role:       string(user.Role),
		SubRole:    user.SubRole,
		IsVerified: user.Status != userdomain.UserStatusPending && user.Status != userdomain.UserStatusPendingVerification,
		SessionID:  sessionID,
	})
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx,
		sessionservice.UserInfo{ID: user.ID, Role: string(user.Role), Email: user.Email, Name: user.Name},
		sessionservice.TokenInfo{SessionID: sessionID, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, ExpiresIn: pair.ExpiresIn},
		req)
	if err != nil {
		return nil, err
	}
	s.log.Info("login", "user_id", user.ID, "role", user.Role, "session_id", sess.ID)
	return &LoginResult{User: user, Tokens: pair, Session: sess}, nil
}

// Refresh mints a new access token from refreshToken and records the refresh
// as activity on its session. The refresh token must be the one the session
// was opened with and the session must still be online.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	access, expiresIn, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		return nil, err
	}
	claims := s.tokens.Decode(refreshToken)
	res := &RefreshResult{AccessToken: access, ExpiresIn: expiresIn}
	if claims == nil || claims.SessionID == "" {
		return res, nil
	}
	res.SessionID = claims.SessionID
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsOnline() {
		return nil, ErrSessionEnded
	}
	if !security.FingerprintEqual(refreshToken, security.TokenFingerprint(sess.RefreshToken)) {
		return nil, apperr.ErrMalformed.WithDetails("refresh token does not belong to session")
	}
	if _, err := s.sessions.Touch(ctx, sess.ID, map[string]any{"event": "token_refresh"}); err != nil {
		return nil, err
	}
	return res, nil
}

// Logout ends the session named by accessToken. The token is decoded without
// verification so expired tokens can still log out.
func (s *AuthService) Logout(ctx context.Context, accessToken, reason string) (*sessiondomain.Session, error) {
	claims := s.tokens.Decode(accessToken)
	if claims == nil || claims.SessionID == "" {
		return nil, apperr.ErrMalformed.WithDetails("token carries no session")
	}
	details := map[string]any{}
	if reason != "" {
		details["reason"] = reason
	}
	return s.sessions.Logout(ctx, claims.SessionID, details)
}

// Authenticate verifies accessToken and touches its session. A token whose
// session has ended is rejected even if the signature is still valid.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*security.Claims, error) {
	claims, err := s.tokens.Verify(accessToken, security.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return claims, nil
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsOnline() {
		return nil, ErrSessionEnded
	}
	if _, err := s.sessions.Touch(ctx, sess.ID, map[string]any{"event": "request"}); err != nil {
		return nil, err
	}
	return claims, nil
}
