package repository

import (
	"context"
	"time"

	"identity-core/internal/user/domain"
)

// Repository defines persistence for one role's user store. Lookups return
// (nil, nil) for missing records; errors are store failures only.
type Repository interface {
	Role() domain.Role
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateStatus sets status and is_active for id. Returns false when id does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus, isActive bool) (bool, error)
	// DeletePendingByEmail deletes the record for email only while its status is in statuses.
	DeletePendingByEmail(ctx context.Context, email string, statuses []domain.UserStatus) (int64, error)
	// DeleteStalePending deletes records whose status is in statuses and that were created before cutoff.
	DeleteStalePending(ctx context.Context, statuses []domain.UserStatus, createdBefore time.Time) (int64, error)
	CountByStatus(ctx context.Context, statuses []domain.UserStatus) (int64, error)
}
