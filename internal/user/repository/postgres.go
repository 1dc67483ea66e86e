package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"identity-core/internal/user/domain"
)

const userColumns = "id, email, name, password_hash, sub_role, title, status, is_active, created_at, updated_at"

// PostgresRepository stores one role's users in that role's table.
type PostgresRepository struct {
	db      *sql.DB
	profile domain.RoleProfile
}

// NewPostgresRepository returns a user repository over the table named by profile.
func NewPostgresRepository(db *sql.DB, profile domain.RoleProfile) *PostgresRepository {
	return &PostgresRepository{db: db, profile: profile}
}

func (r *PostgresRepository) Role() domain.Role { return r.profile.Role }

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", userColumns, r.profile.Table)
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// GetByEmail returns the user with the given (normalized) email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE email = $1", userColumns, r.profile.Table)
	return r.scanOne(r.db.QueryRowContext(ctx, q, email))
}

// Create persists u. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)", r.profile.Table, userColumns)
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Email, u.Name, u.PasswordHash,
		nullString(u.SubRole), nullString(u.Title),
		string(u.Status), u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus, isActive bool) (bool, error) {
	q := fmt.Sprintf("UPDATE %s SET status = $2, is_active = $3, updated_at = $4 WHERE id = $1", r.profile.Table)
	res, err := r.db.ExecContext(ctx, q, id, string(status), isActive, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) DeletePendingByEmail(ctx context.Context, email string, statuses []domain.UserStatus) (int64, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE email = $1 AND status = ANY($2)", r.profile.Table)
	res, err := r.db.ExecContext(ctx, q, email, statusStrings(statuses))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) DeleteStalePending(ctx context.Context, statuses []domain.UserStatus, createdBefore time.Time) (int64, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE status = ANY($1) AND created_at < $2", r.profile.Table)
	res, err := r.db.ExecContext(ctx, q, statusStrings(statuses), createdBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) CountByStatus(ctx context.Context, statuses []domain.UserStatus) (int64, error) {
	q := fmt.Sprintf("SELECT count(*) FROM %s WHERE status = ANY($1)", r.profile.Table)
	var n int64
	if err := r.db.QueryRowContext(ctx, q, statusStrings(statuses)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*domain.User, error) {
	var (
		u       domain.User
		subRole sql.NullString
		title   sql.NullString
		status  string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &subRole, &title, &status, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = r.profile.Role
	u.SubRole = subRole.String
	u.Title = title.String
	u.Status = domain.UserStatus(status)
	return &u, nil
}

func statusStrings(statuses []domain.UserStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
