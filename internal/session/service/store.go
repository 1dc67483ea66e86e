package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"identity-core/internal/audit"
	auditdomain "identity-core/internal/audit/domain"
	"identity-core/internal/platform/apperr"
	"identity-core/internal/security"
	"identity-core/internal/session/domain"
	sessionrepo "identity-core/internal/session/repository"
	"identity-core/internal/telemetry"
)

// Logout reasons recorded in the activity trail.
const (
	ReasonManual       = "manual"
	ReasonTokenExpired = "token_expired"
	ReasonTerminated   = "terminated"
)

// UserInfo identifies the principal a session belongs to.
type UserInfo struct {
	ID    string
	Role  string
	Email string
	Name  string
}

// TokenInfo is the credential pair a session is bound to. SessionID is
// optional; a new UUID is generated when empty.
type TokenInfo struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenVersion int
}

// RequestInfo describes the request that opened the session.
type RequestInfo struct {
	IP        string
	UserAgent string
	IsSecure  bool
	Country   string
	City      string
	Timezone  string
}

// TerminateResult is returned by TerminateAll.
type TerminateResult struct {
	TerminatedCount int
}

// ReapResult is returned by ReapExpired.
type ReapResult struct {
	ReapedCount int
}

// Config holds Store tuning. Zero values take defaults.
type Config struct {
	// IdleAfter is the inactivity window after which an online session counts as idle (30m).
	IdleAfter time.Duration
	// ReapInterval drives the background reaper started by Start (1m).
	ReapInterval time.Duration
	// Concurrency bounds the logout fan-out of TerminateAll and ReapExpired (8).
	Concurrency int
	Logger      *slog.Logger
	Metrics     *telemetry.Metrics
}

// Store manages session records and their activity trail.
type Store struct {
	repo         sessionrepo.Repository
	activity     audit.ActivityRecorder
	idleAfter    time.Duration
	reapInterval time.Duration
	concurrency  int
	log          *slog.Logger
	metrics      *telemetry.Metrics
	now          func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore returns a Store over repo. activity may be nil.
func NewStore(repo sessionrepo.Repository, activity audit.ActivityRecorder, cfg Config) *Store {
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = 30 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:         repo,
		activity:     activity,
		idleAfter:    cfg.IdleAfter,
		reapInterval: cfg.ReapInterval,
		concurrency:  cfg.Concurrency,
		log:          logger.With("component", "session"),
		metrics:      cfg.Metrics,
		now:          time.Now,
	}
}

func (s *Store) record(ctx context.Context, sess *domain.Session, action auditdomain.Action, details map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, sess.ID, sess.UserID, action, details)
}

// Create opens an online session bound to tokens and appends a login entry.
func (s *Store) Create(ctx context.Context, user UserInfo, tokens TokenInfo, req RequestInfo) (*domain.Session, error) {
	if user.ID == "" {
		return nil, errors.New("session: user id is required")
	}
	id := tokens.SessionID
	if id == "" {
		id = uuid.New().String()
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	now := s.now().UTC()
	sess := &domain.Session{
		ID:           id,
		UserID:       user.ID,
		UserRole:     user.Role,
		UserEmail:    user.Email,
		UserName:     user.Name,
		LoginAt:      now,
		LastActivity: now,
		Status:       domain.StatusOnline,
		Device:       domain.ParseDevice(req.UserAgent),
		Location: domain.Location{
			IP:       req.IP,
			Country:  req.Country,
			City:     req.City,
			Timezone: tz,
		},
		Security: domain.Security{
			UserAgent:    req.UserAgent,
			IsSecure:     req.IsSecure,
			TokenVersion: tokens.TokenVersion,
		},
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		ActivityCount:  1,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.metrics.SessionStarted(ctx, user.Role)
	s.record(ctx, sess, auditdomain.ActionLogin, map[string]any{
		"ip":                req.IP,
		"device_type":       sess.Device.Type,
		"browser":           sess.Device.Browser,
		"os":                sess.Device.OS,
		"access_token_hash": security.TokenFingerprint(tokens.AccessToken),
	})
	return sess, nil
}

// Get returns the session for id, or nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.repo.GetByID(ctx, id)
}

// Touch records activity on the session. It returns (nil, nil) when id is unknown.
func (s *Store) Touch(ctx context.Context, id string, details map[string]any) (*domain.Session, error) {
	sess, err := s.repo.Touch(ctx, id, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	s.record(ctx, sess, auditdomain.ActionActivity, details)
	return sess, nil
}

// Logout ends the session. details["reason"] is recorded, defaulting to "manual".
// Unknown ids fail with apperr.ErrNotFound. An already-offline session is returned unchanged.
func (s *Store) Logout(ctx context.Context, id string, details map[string]any) (*domain.Session, error) {
	sess, _, err := s.logout(ctx, id, details)
	return sess, err
}

func (s *Store) logout(ctx context.Context, id string, details map[string]any) (*domain.Session, bool, error) {
	sess, changed, err := s.repo.MarkOffline(ctx, id, s.now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("logout session: %w", err)
	}
	if sess == nil {
		return nil, false, apperr.ErrNotFound.WithDetails("session " + id)
	}
	if !changed {
		return sess, false, nil
	}
	entry := make(map[string]any, len(details)+2)
	for k, v := range details {
		entry[k] = v
	}
	reason, _ := entry["reason"].(string)
	if reason == "" {
		reason = ReasonManual
		entry["reason"] = reason
	}
	if sess.Duration != nil {
		entry["duration_minutes"] = *sess.Duration
	}
	s.metrics.SessionEnded(ctx, reason)
	s.record(ctx, sess, auditdomain.ActionLogout, entry)
	return sess, true, nil
}

// logoutAll logs each session out with reason using a bounded fan-out and
// returns how many actually transitioned. Individual failures are joined.
func (s *Store) logoutAll(ctx context.Context, sessions []*domain.Session, reason string) (int, error) {
	var (
		count atomic.Int64
		mu    sync.Mutex
		errs  []error
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, sess := range sessions {
		g.Go(func() error {
			_, changed, err := s.logout(ctx, sess.ID, map[string]any{"reason": reason})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			if changed {
				count.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(count.Load()), errors.Join(errs...)
}

// TerminateAll logs out every online session of userID.
func (s *Store) TerminateAll(ctx context.Context, userID, reason string) (TerminateResult, error) {
	if reason == "" {
		reason = ReasonTerminated
	}
	online, err := s.repo.ListOnlineByUser(ctx, userID)
	if err != nil {
		return TerminateResult{}, fmt.Errorf("list online sessions: %w", err)
	}
	n, err := s.logoutAll(ctx, online, reason)
	if n > 0 {
		s.log.Info("sessions terminated", "user_id", userID, "reason", reason, "count", n)
	}
	return TerminateResult{TerminatedCount: n}, err
}

// ActiveSessions returns the user's online sessions, most recently active first.
func (s *Store) ActiveSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return s.repo.ListOnlineByUser(ctx, userID)
}

// History returns the user's sessions of any status, newest login first, capped at limit.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// ReapExpired logs out every online session whose access token has expired.
// Sessions are marked offline, never deleted.
func (s *Store) ReapExpired(ctx context.Context) (ReapResult, error) {
	expired, err := s.repo.ListExpiredOnline(ctx, s.now().UTC())
	if err != nil {
		return ReapResult{}, fmt.Errorf("list expired sessions: %w", err)
	}
	n, err := s.logoutAll(ctx, expired, ReasonTokenExpired)
	return ReapResult{ReapedCount: n}, err
}

// Stats aggregates sessions for userID, or for everyone when userID is empty.
func (s *Store) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	return s.repo.Stats(ctx, userID, s.now().UTC().Add(-s.idleAfter))
}

// StateAt derives the current state of sess using the configured idle window.
func (s *Store) StateAt(sess *domain.Session) domain.Status {
	return sess.StateAt(s.now().UTC(), s.idleAfter)
}

// Start runs ReapExpired every reap interval until ctx is done or Stop is called.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := s.ReapExpired(ctx)
				if err != nil {
					s.log.Error("session reaper", "error", err)
				}
				if res.ReapedCount > 0 {
					s.log.Info("expired sessions reaped", "count", res.ReapedCount)
				}
			}
		}
	}()
}

// Stop halts the reaper and waits for it to exit.
func (s *Store) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
