package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"identity-core/internal/session/domain"
)

const sessionColumns = `id, user_id, user_role, user_email, user_name, login_at, logout_at, last_activity, status,
	device_type, browser, os, platform, ip, country, city, timezone, user_agent, is_secure, token_version,
	access_token, refresh_token, token_expires_at, duration_minutes, activity_count`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s        domain.Session
		status   string
		logoutAt sql.NullTime
		country  sql.NullString
		city     sql.NullString
		duration sql.NullInt32
	)
	err := row.Scan(&s.ID, &s.UserID, &s.UserRole, &s.UserEmail, &s.UserName, &s.LoginAt, &logoutAt, &s.LastActivity, &status,
		&s.Device.Type, &s.Device.Browser, &s.Device.OS, &s.Device.Platform,
		&s.Location.IP, &country, &city, &s.Location.Timezone,
		&s.Security.UserAgent, &s.Security.IsSecure, &s.Security.TokenVersion,
		&s.AccessToken, &s.RefreshToken, &s.TokenExpiresAt, &duration, &s.ActivityCount)
	if err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	if logoutAt.Valid {
		t := logoutAt.Time
		s.LogoutAt = &t
	}
	s.Location.Country = country.String
	s.Location.City = city.String
	if duration.Valid {
		d := int(duration.Int32)
		s.Duration = &d
	}
	return &s, nil
}

// scanOptional maps sql.ErrNoRows to (nil, nil).
func scanOptional(row *sql.Row) (*domain.Session, error) {
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		s.ID, s.UserID, s.UserRole, s.UserEmail, s.UserName, s.LoginAt, timeToNullTime(s.LogoutAt), s.LastActivity, string(s.Status),
		s.Device.Type, s.Device.Browser, s.Device.OS, s.Device.Platform,
		s.Location.IP, nullString(s.Location.Country), nullString(s.Location.City), s.Location.Timezone,
		s.Security.UserAgent, s.Security.IsSecure, s.Security.TokenVersion,
		s.AccessToken, s.RefreshToken, s.TokenExpiresAt, intToNullInt(s.Duration), s.ActivityCount)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return scanOptional(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) (*domain.Session, error) {
	return scanOptional(r.db.QueryRowContext(ctx,
		`UPDATE sessions SET last_activity = $2, activity_count = activity_count + 1
		 WHERE id = $1 RETURNING `+sessionColumns, id, at))
}

// MarkOffline computes duration_minutes in the same statement so it is written exactly once.
func (r *PostgresRepository) MarkOffline(ctx context.Context, id string, at time.Time) (*domain.Session, bool, error) {
	s, err := scanOptional(r.db.QueryRowContext(ctx,
		`UPDATE sessions SET status = 'offline', logout_at = $2,
		   duration_minutes = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - login_at)) / 60))::int
		 WHERE id = $1 AND status <> 'offline' RETURNING `+sessionColumns, id, at))
	if err != nil || s != nil {
		return s, s != nil, err
	}
	s, err = r.GetByID(ctx, id)
	return s, false, err
}

func (r *PostgresRepository) ListOnlineByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND status = 'online' ORDER BY last_activity DESC`, userID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 ORDER BY login_at DESC LIMIT $2`, userID, limit)
}

func (r *PostgresRepository) ListExpiredOnline(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE status = 'online' AND token_expires_at < $1`, now)
}

func (r *PostgresRepository) Stats(ctx context.Context, userID string, idleBefore time.Time) (domain.Stats, error) {
	var (
		st  domain.Stats
		avg sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'online'),
		        COUNT(*) FILTER (WHERE status = 'online' AND last_activity < $2),
		        AVG(duration_minutes),
		        COALESCE(SUM(activity_count), 0)
		 FROM sessions WHERE ($1 = '' OR user_id = $1)`, userID, idleBefore).
		Scan(&st.TotalSessions, &st.ActiveSessions, &st.IdleSessions, &avg, &st.TotalActivity)
	if err != nil {
		return domain.Stats{}, err
	}
	st.AverageDurationMinutes = avg.Float64
	return st, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func intToNullInt(d *int) sql.NullInt32 {
	if d == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*d), Valid: true}
}
