package repository

import (
	"context"

	"identity-core/internal/audit/domain"
)

// Repository persists activity entries. Entries are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
	// ListBySession returns the session's entries oldest first, capped at limit.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.ActivityLog, error)
}
