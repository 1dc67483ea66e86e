package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"identity-core/internal/session/domain"
)

// ErrDuplicateID is returned by MemoryRepository.Create for an existing id.
var ErrDuplicateID = errors.New("session: duplicate id")

// MemoryRepository is an in-process session store used when no database is configured.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return ErrDuplicateID
	}
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneSession(r.sessions[id]), nil
}

func (r *MemoryRepository) Touch(_ context.Context, id string, at time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	s.LastActivity = at
	s.ActivityCount++
	return cloneSession(s), nil
}

func (r *MemoryRepository) MarkOffline(_ context.Context, id string, at time.Time) (*domain.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false, nil
	}
	if s.Status == domain.StatusOffline {
		return cloneSession(s), false, nil
	}
	logout := at
	d := domain.DurationMinutes(s.LoginAt, at)
	s.Status = domain.StatusOffline
	s.LogoutAt = &logout
	s.Duration = &d
	return cloneSession(s), true, nil
}

func (r *MemoryRepository) ListOnlineByUser(_ context.Context, userID string) ([]*domain.Session, error) {
	out := r.filter(func(s *domain.Session) bool {
		return s.UserID == userID && s.Status == domain.StatusOnline
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]*domain.Session, error) {
	out := r.filter(func(s *domain.Session) bool { return s.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].LoginAt.After(out[j].LoginAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListExpiredOnline(_ context.Context, now time.Time) ([]*domain.Session, error) {
	return r.filter(func(s *domain.Session) bool {
		return s.Status == domain.StatusOnline && s.TokenExpired(now)
	}), nil
}

func (r *MemoryRepository) Stats(_ context.Context, userID string, idleBefore time.Time) (domain.Stats, error) {
	var (
		st        domain.Stats
		durations int64
		ended     int64
	)
	for _, s := range r.filter(func(s *domain.Session) bool { return userID == "" || s.UserID == userID }) {
		st.TotalSessions++
		st.TotalActivity += s.ActivityCount
		if s.Status == domain.StatusOnline {
			st.ActiveSessions++
			if s.LastActivity.Before(idleBefore) {
				st.IdleSessions++
			}
		}
		if s.Duration != nil {
			durations += int64(*s.Duration)
			ended++
		}
	}
	if ended > 0 {
		st.AverageDurationMinutes = float64(durations) / float64(ended)
	}
	return st, nil
}

func (r *MemoryRepository) filter(keep func(*domain.Session) bool) []*domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if keep(s) {
			out = append(out, cloneSession(s))
		}
	}
	return out
}

func cloneSession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.LogoutAt != nil {
		t := *s.LogoutAt
		c.LogoutAt = &t
	}
	if s.Duration != nil {
		d := *s.Duration
		c.Duration = &d
	}
	return &c
}
