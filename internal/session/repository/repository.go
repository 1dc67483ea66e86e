package repository

import (
	"context"
	"time"

	"identity-core/internal/session/domain"
)

// Repository defines persistence for sessions. Every mutation is a single
// statement; lookups return (nil, nil) for unknown ids.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Touch sets last_activity to at and increments activity_count.
	Touch(ctx context.Context, id string, at time.Time) (*domain.Session, error)
	// MarkOffline logs the session out at at unless it is already offline.
	// changed is false when the session was already offline or does not exist.
	MarkOffline(ctx context.Context, id string, at time.Time) (s *domain.Session, changed bool, err error)
	// ListOnlineByUser returns online sessions, most recently active first.
	ListOnlineByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// ListByUser returns sessions of any status, newest login first, capped at limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error)
	// ListExpiredOnline returns online sessions whose token expired before now.
	ListExpiredOnline(ctx context.Context, now time.Time) ([]*domain.Session, error)
	// Stats aggregates sessions for userID, or all sessions when userID is empty.
	// Online sessions with last activity before idleBefore count as idle.
	Stats(ctx context.Context, userID string, idleBefore time.Time) (domain.Stats, error)
}
