package repository

import (
	"context"
	"database/sql"

	"identity-core/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an activity log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts the entry. The entry must have ID set.
func (r *PostgresRepository) Append(ctx context.Context, a *domain.ActivityLog) error {
	details := a.Details
	if details == "" {
		details = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, session_id, user_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		a.ID, a.SessionID, a.UserID, string(a.Action), details, a.CreatedAt)
	return err
}

// ListBySession returns entries for sessionID ordered by creation time.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, action, details::text, created_at
		 FROM activity_logs WHERE session_id = $1 ORDER BY created_at ASC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ActivityLog
	for rows.Next() {
		var a domain.ActivityLog
		var action string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &action, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Action = domain.Action(action)
		out = append(out, &a)
	}
	return out, rows.Err()
}
