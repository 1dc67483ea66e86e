package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"identity-core/internal/user/domain"
)

// ErrDuplicateEmail is returned by MemoryRepository.Create when the email is taken.
var ErrDuplicateEmail = errors.New("user: duplicate email")

// MemoryRepository is an in-process user store used when no database is configured.
type MemoryRepository struct {
	role    domain.Role
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryRepository returns an empty in-process store for role.
func NewMemoryRepository(role domain.Role) *MemoryRepository {
	return &MemoryRepository{
		role:    role,
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) Role() domain.Role { return r.role }

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.byID[r.byEmail[email]]), nil
}

func (r *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrDuplicateEmail
	}
	c := cloneUser(u)
	c.Role = r.role
	r.byID[u.ID] = c
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status domain.UserStatus, isActive bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	u.Status = status
	u.IsActive = isActive
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryRepository) DeletePendingByEmail(_ context.Context, email string, statuses []domain.UserStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[r.byEmail[email]]
	if !ok || !statusIn(u.Status, statuses) {
		return 0, nil
	}
	r.remove(u)
	return 1, nil
}

func (r *MemoryRepository) DeleteStalePending(_ context.Context, statuses []domain.UserStatus, createdBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.byID {
		if statusIn(u.Status, statuses) && u.CreatedAt.Before(createdBefore) {
			r.remove(u)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountByStatus(_ context.Context, statuses []domain.UserStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.byID {
		if statusIn(u.Status, statuses) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) remove(u *domain.User) {
	delete(r.byID, u.ID)
	delete(r.byEmail, u.Email)
}

func statusIn(s domain.UserStatus, set []domain.UserStatus) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
