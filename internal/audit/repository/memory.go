package repository

import (
	"context"
	"sync"

	"identity-core/internal/audit/domain"
)

// MemoryRepository keeps activity entries in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []domain.ActivityLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, a *domain.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *a)
	return nil
}

func (r *MemoryRepository) ListBySession(_ context.Context, sessionID string, limit int) ([]*domain.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ActivityLog
	for i := range r.entries {
		if r.entries[i].SessionID != sessionID {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		e := r.entries[i]
		out = append(out, &e)
	}
	return out, nil
}

// Len returns the number of stored entries.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
