// Package cleanup purges abandoned registrations: user records that never
// left the pending statuses within the staleness window.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"identity-core/internal/telemetry"
	"identity-core/internal/user/domain"
	userrepo "identity-core/internal/user/repository"
)

// Invalidator drops cached availability answers. *availability.Checker implements it.
type Invalidator interface {
	Invalidate(email string)
	InvalidateAll()
}

// Stores resolves the per-role user repositories. *userrepo.Directory implements it.
type Stores interface {
	Store(role domain.Role) (userrepo.Repository, error)
	Stores() []userrepo.Repository
}

// OneResult is returned by CleanupOne.
type OneResult struct {
	Cleaned bool
}

// BulkResult reports deletions per role.
type BulkResult struct {
	ClientsDeleted   int64
	EmployeesDeleted int64
	AdminsDeleted    int64
}

// Total returns the number of records deleted across all roles.
func (r BulkResult) Total() int64 {
	return r.ClientsDeleted + r.EmployeesDeleted + r.AdminsDeleted
}

func (r *BulkResult) set(role domain.Role, n int64) {
	switch role {
	case domain.RoleClient:
		r.ClientsDeleted = n
	case domain.RoleEmployee:
		r.EmployeesDeleted = n
	case domain.RoleAdmin:
		r.AdminsDeleted = n
	}
}

// RegistrationStatus is the diagnostic view returned by Status.
type RegistrationStatus struct {
	Exists       bool
	Role         domain.Role
	Status       domain.UserStatus
	CreatedAt    time.Time
	NeedsCleanup bool
}

// Config holds Scheduler parameters. Zero values take defaults.
type Config struct {
	// StaleAfter is the age past which the daily run purges a pending record (24h).
	StaleAfter time.Duration
	// Hour is the local wall-clock hour of the daily run (0–23).
	Hour    int
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Scheduler deletes stale pending registrations on demand and once a day.
type Scheduler struct {
	stores     Stores
	cache      Invalidator
	staleAfter time.Duration
	hour       int
	log        *slog.Logger
	metrics    *telemetry.Metrics
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler returns a Scheduler over stores. cache may be nil.
func NewScheduler(stores Stores, cache Invalidator, cfg Config) *Scheduler {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 24 * time.Hour
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		cfg.Hour = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		stores:     stores,
		cache:      cache,
		staleAfter: cfg.StaleAfter,
		hour:       cfg.Hour,
		log:        logger.With("component", "cleanup"),
		metrics:    cfg.Metrics,
		now:        time.Now,
	}
}

// CleanupOne deletes the role's record for email only while it is still pending.
// Cleaned is false, with no error, when the record is absent or past pending.
func (s *Scheduler) CleanupOne(ctx context.Context, email string, role domain.Role, reason string) (OneResult, error) {
	repo, err := s.stores.Store(role)
	if err != nil {
		return OneResult{}, err
	}
	email = domain.NormalizeEmail(email)
	n, err := repo.DeletePendingByEmail(ctx, email, domain.PendingStatuses)
	if err != nil {
		return OneResult{}, fmt.Errorf("cleanup %s registration: %w", role, err)
	}
	if n == 0 {
		return OneResult{}, nil
	}
	if s.cache != nil {
		s.cache.Invalidate(email)
	}
	s.metrics.RegistrationsPurged(ctx, string(role), n)
	s.log.Info("pending registration removed", "email", email, "role", role, "reason", reason)
	return OneResult{Cleaned: true}, nil
}

// BulkCleanup deletes pending records created more than staleAfter ago in
// every role store. Roles run independently; a failing role is logged and reports 0.
func (s *Scheduler) BulkCleanup(ctx context.Context, staleAfter time.Duration) (BulkResult, error) {
	if staleAfter <= 0 {
		staleAfter = s.staleAfter
	}
	cutoff := s.now().UTC().Add(-staleAfter)
	stores := s.stores.Stores()
	counts := make([]int64, len(stores))

	var g errgroup.Group
	g.SetLimit(len(domain.Roles))
	for i, repo := range stores {
		g.Go(func() error {
			n, err := repo.DeleteStalePending(ctx, domain.PendingStatuses, cutoff)
			if err != nil {
				s.log.Error("bulk cleanup failed for role", "role", repo.Role(), "error", err)
				return nil
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait()

	var res BulkResult
	for i, repo := range stores {
		res.set(repo.Role(), counts[i])
		s.metrics.RegistrationsPurged(ctx, string(repo.Role()), counts[i])
	}
	if res.Total() > 0 && s.cache != nil {
		s.cache.InvalidateAll()
	}
	s.log.Info("bulk cleanup finished",
		"clients", res.ClientsDeleted, "employees", res.EmployeesDeleted, "admins", res.AdminsDeleted,
		"cutoff", cutoff)
	return res, ctx.Err()
}

// Status reports where email is registered and whether it is still pending.
func (s *Scheduler) Status(ctx context.Context, email string) (RegistrationStatus, error) {
	email = domain.NormalizeEmail(email)
	for _, repo := range s.stores.Stores() {
		u, err := repo.GetByEmail(ctx, email)
		if err != nil {
			return RegistrationStatus{}, fmt.Errorf("%s store: %w", repo.Role(), err)
		}
		if u == nil {
			continue
		}
		return RegistrationStatus{
			Exists:       true,
			Role:         repo.Role(),
			Status:       u.Status,
			CreatedAt:    u.CreatedAt,
			NeedsCleanup: u.Status.IsPending(),
		}, nil
	}
	return RegistrationStatus{}, nil
}

// PendingCounts returns how many pending records each role store holds.
func (s *Scheduler) PendingCounts(ctx context.Context) (map[domain.Role]int64, error) {
	stores := s.stores.Stores()
	counts := make([]int64, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, repo := range stores {
		g.Go(func() error {
			n, err := repo.CountByStatus(gctx, domain.PendingStatuses)
			if err != nil {
				return fmt.Errorf("%s store: %w", repo.Role(), err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[domain.Role]int64, len(stores))
	for i, repo := range stores {
		out[repo.Role()] = counts[i]
	}
	return out, nil
}

// NextRun returns the first occurrence of hour:00 local time strictly after now.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start waits for the next run time, runs BulkCleanup, then repeats every 24h
// until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
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
		next := NextRun(s.now(), s.hour)
		s.log.Info("registration cleanup scheduled", "next_run", next)
		timer := time.NewTimer(next.Sub(s.now()))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.run(ctx)

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx)
			}
		}
	}()
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.BulkCleanup(ctx, s.staleAfter); err != nil {
		s.log.Error("scheduled cleanup", "error", err)
	}
}

// Stop halts the daily driver and waits for it to exit.
func (s *Scheduler) Stop() {
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
