package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"identity-core/internal/availability"
	"identity-core/internal/security"
	userdomain "identity-core/internal/user/domain"
	userrepo "identity-core/internal/user/repository"
)

// Sentinel errors for registration and auth flows.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountInactive        = errors.New("account is not active")
	ErrUserNotFound           = errors.New("user not found")
	ErrSessionEnded           = errors.New("session has ended")
)

// AvailabilityChecker is the part of the availability cache the flows need.
type AvailabilityChecker interface {
	Check(ctx context.Context, email string, opts ...availability.Option) (*availability.Result, error)
	Invalidate(email string)
}

// UserDirectory resolves user stores by role and finds users across them.
type UserDirectory interface {
	Store(role userdomain.Role) (userrepo.Repository, error)
	FindByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// RegisterInput is the data needed to start a registration.
type RegisterInput struct {
	Role     userdomain.Role
	Email    string
	Name     string
	Password string
	SubRole  string
}

// Registration creates and transitions user records, keeping the
// availability cache in step with every mutation.
type Registration struct {
	users  UserDirectory
	cache  AvailabilityChecker
	hasher security.PasswordHasher
	log    *slog.Logger
	now    func() time.Time
}

// NewRegistration returns a Registration. logger may be nil.
func NewRegistration(users UserDirectory, cache AvailabilityChecker, hasher security.PasswordHasher, logger *slog.Logger) *Registration {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registration{
		users:  users,
		cache:  cache,
		hasher: hasher,
		log:    logger.With("component", "registration"),
		now:    time.Now,
	}
}

// Start creates a user record in the role's initial status. A pending record
// for the same email is replaced; an active or otherwise settled account is
// ErrEmailAlreadyRegistered.
func (r *Registration) Start(ctx context.Context, in RegisterInput) (*userdomain.User, error) {
	profile, err := userdomain.ProfileFor(in.Role)
	if err != nil {
		return nil, err
	}
	subRole, title, err := profile.ResolveSubRole(strings.TrimSpace(in.SubRole))
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	email := userdomain.NormalizeEmail(in.Email)

	res, err := r.cache.Check(ctx, email)
	if err != nil {
		return nil, err
	}
	if !res.Available {
		return nil, ErrEmailAlreadyRegistered
	}
	if res.Exists || res.FromFallback {
		if err := r.replacePending(ctx, email); err != nil {
			return nil, err
		}
	}

	hash, err := r.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()
	u := &userdomain.User{
		ID:           uuid.New().String(),
		Role:         in.Role,
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		SubRole:      subRole,
		Title:        title,
		Status:       profile.InitialStatus,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	store, err := r.users.Store(in.Role)
	if err != nil {
		return nil, err
	}
	if err := store.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create %s: %w", in.Role, err)
	}
	r.cache.Invalidate(email)
	r.log.Info("registration started", "user_id", u.ID, "role", u.Role, "status", u.Status)
	return u, nil
}

// replacePending removes an abandoned pending record for email so a fresh
// registration can take its place.
func (r *Registration) replacePending(ctx context.Context, email string) error {
	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if !existing.Status.IsPending() {
		return ErrEmailAlreadyRegistered
	}
	store, err := r.users.Store(existing.Role)
	if err != nil {
		return err
	}
	if _, err := store.DeletePendingByEmail(ctx, email, userdomain.PendingStatuses); err != nil {
		return fmt.Errorf("replace pending registration: %w", err)
	}
	r.log.Info("pending registration replaced", "email", email, "role", existing.Role)
	return nil
}

// Activate marks the account active.
func (r *Registration) Activate(ctx context.Context, role userdomain.Role, id string) (*userdomain.User, error) {
	return r.setStatus(ctx, role, id, userdomain.UserStatusActive, true)
}

// ChangeStatus moves the account to status. Activity follows the status table.
func (r *Registration) ChangeStatus(ctx context.Context, role userdomain.Role, id string, status userdomain.UserStatus) (*userdomain.User, error) {
	return r.setStatus(ctx, role, id, status, status.IsActive(false))
}

// SoftDelete marks the account deleted and inactive without removing the record.
func (r *Registration) SoftDelete(ctx context.Context, role userdomain.Role, id string) (*userdomain.User, error) {
	return r.setStatus(ctx, role, id, userdomain.UserStatusDeleted, false)
}

// Restore reactivates a soft-deleted account.
func (r *Registration) Restore(ctx context.Context, role userdomain.Role, id string) (*userdomain.User, error) {
	return r.setStatus(ctx, role, id, userdomain.UserStatusActive, true)
}

func (r *Registration) setStatus(ctx context.Context, role userdomain.Role, id string, status userdomain.UserStatus, isActive bool) (*userdomain.User, error) {
	store, err := r.users.Store(role)
	if err != nil {
		return nil, err
	}
	ok, err := store.UpdateStatus(ctx, id, status, isActive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	u, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	r.cache.Invalidate(u.Email)
	r.log.Info("user status changed", "user_id", id, "role", role, "status", status)
	return u, nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
