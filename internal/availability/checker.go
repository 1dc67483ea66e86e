// Package availability answers whether an email can be used for a new
// registration, caching the cross-store lookup for a bounded time.
//
// The cache is process-local. Separate instances converge only through TTL
// expiry; the user stores stay authoritative.
package availability

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"identity-core/internal/platform/apperr"
	"identity-core/internal/telemetry"
	"identity-core/internal/user/domain"
)

// Reasons reported in Result.Reason.
const (
	ReasonNotRegistered      = "not_registered"
	ReasonRegisteredActive   = "registered_active"
	ReasonRegisteredInactive = "registered_inactive"
	ReasonFallbackCached     = "fallback_cached"
	ReasonFallbackDefault    = "fallback_default"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Lookup finds a user by normalized email across every role store.
// A nil user with a nil error means the email is unknown.
type Lookup interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Result is the answer to one Check.
type Result struct {
	Email        string
	Exists       bool
	IsActive     bool
	UserType     string
	Status       string
	Available    bool
	FromCache    bool
	FromFallback bool
	Reason       string
	ResponseTime time.Duration
}

// Config holds Checker construction parameters.
type Config struct {
	Defaults      Options
	SweepInterval time.Duration
	Logger        *slog.Logger
	Metrics       *telemetry.Metrics
}

// Checker is the availability cache. Safe for concurrent use.
type Checker struct {
	lookup        Lookup
	cache         *cache
	defaults      Options
	sweepInterval time.Duration
	log           *slog.Logger
	metrics       *telemetry.Metrics
	now           func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChecker returns a Checker over lookup. Zero fields in cfg take the defaults.
func NewChecker(lookup Lookup, cfg Config) *Checker {
	defaults := cfg.Defaults
	if defaults == (Options{}) {
		defaults = DefaultOptions()
	}
	if defaults.CacheTTL <= 0 {
		defaults.CacheTTL = DefaultOptions().CacheTTL
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = DefaultOptions().Timeout
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		lookup:        lookup,
		defaults:      defaults,
		sweepInterval: interval,
		log:           logger.With("component", "availability"),
		metrics:       cfg.Metrics,
		now:           time.Now,
	}
	c.cache = newCache(func() time.Time { return c.now() })
	return c
}

type lookupResult struct {
	user *domain.User
	err  error
}

// Check reports whether email is available for registration.
func (c *Checker) Check(ctx context.Context, email string, opts ...Option) (*Result, error) {
	start := c.now()
	o := c.defaults
	for _, opt := range opts {
		opt(&o)
	}

	key := domain.NormalizeEmail(email)
	if o.ValidateEmailFormat && !emailPattern.MatchString(key) {
		return nil, apperr.ErrInvalidFormat.WithDetails("email " + email)
	}

	var stale *Snapshot
	if o.UseCache {
		var fresh *Snapshot
		fresh, stale = c.cache.get(key)
		if fresh != nil {
			c.metrics.AvailabilityCheck(ctx, "hit")
			res := c.result(key, *fresh, o, start)
			res.FromCache = true
			return res, nil
		}
	}

	snap, err := c.lookupWithTimeout(ctx, key, o.Timeout)
	if err != nil {
		if !o.FallbackOnError || ctx.Err() != nil {
			c.metrics.AvailabilityCheck(ctx, "error")
			return nil, err
		}
		if stale == nil {
			stale = c.cache.peek(key)
		}
		c.log.Warn("availability lookup failed, using fallback", "email", key, "error", err, "cached", stale != nil)
		c.metrics.AvailabilityCheck(ctx, "fallback")
		if stale != nil {
			res := c.result(key, *stale, o, start)
			res.FromFallback = true
			res.Reason = ReasonFallbackCached
			return res, nil
		}
		res := c.result(key, Snapshot{}, o, start)
		res.FromFallback = true
		res.Reason = ReasonFallbackDefault
		return res, nil
	}

	if o.UseCache {
		c.cache.put(key, snap, o.CacheTTL)
	}
	c.metrics.AvailabilityCheck(ctx, "miss")
	return c.result(key, snap, o, start), nil
}

// lookupWithTimeout races the store lookup against timeout. The result
// channel is buffered so a response arriving after the deadline is dropped.
func (c *Checker) lookupWithTimeout(ctx context.Context, email string, timeout time.Duration) (Snapshot, error) {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan lookupResult, 1)
	go func() {
		u, err := c.lookup.FindByEmail(lctx, email)
		ch <- lookupResult{user: u, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return Snapshot{}, apperr.ErrTimeout.WithDetails(timeout.String()).WithCause(r.err)
			}
			if ctx.Err() != nil {
				return Snapshot{}, ctx.Err()
			}
			return Snapshot{}, apperr.ErrUpstreamUnavailable.WithCause(r.err)
		}
		return snapshotOf(r.user), nil
	case <-lctx.Done():
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		return Snapshot{}, apperr.ErrTimeout.WithDetails("user lookup exceeded " + timeout.String())
	}
}

func snapshotOf(u *domain.User) Snapshot {
	if u == nil {
		return Snapshot{}
	}
	return Snapshot{
		Exists:   true,
		IsActive: u.Active(),
		UserType: string(u.Role),
		Status:   string(u.Status),
	}
}

func (c *Checker) result(email string, s Snapshot, o Options, start time.Time) *Result {
	res := &Result{
		Email:        email,
		Exists:       s.Exists,
		IsActive:     s.IsActive,
		Available:    !s.Exists || !s.IsActive,
		ResponseTime: c.now().Sub(start),
	}
	switch {
	case !s.Exists:
		res.Reason = ReasonNotRegistered
	case s.IsActive:
		res.Reason = ReasonRegisteredActive
	default:
		res.Reason = ReasonRegisteredInactive
	}
	if o.IncludeUserDetails {
		res.UserType = s.UserType
		res.Status = s.Status
	}
	return res
}

// Invalidate drops the cached entry for email.
func (c *Checker) Invalidate(email string) {
	c.cache.remove(domain.NormalizeEmail(email))
}

// InvalidateAll clears the cache.
func (c *Checker) InvalidateAll() {
	n := c.cache.clear()
	c.log.Debug("availability cache cleared", "entries", n)
}

// Stats returns current cache occupancy and hit counts.
func (c *Checker) Stats() Stats {
	return c.cache.stats()
}

// Sweep removes expired entries now and returns how many were dropped.
func (c *Checker) Sweep() int {
	return c.cache.sweep()
}

// Start runs the periodic sweep until ctx is done or Stop is called.
func (c *Checker) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	done := c.done

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.log.Debug("availability cache swept", "removed", n)
				}
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (c *Checker) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
