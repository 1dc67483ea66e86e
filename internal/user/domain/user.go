package domain

import (
	"errors"
	"strings"
	"time"
)

// Role identifies which user store a record lives in.
type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Roles lists every role in lookup order.
var Roles = []Role{RoleClient, RoleEmployee, RoleAdmin}

// ParseRole returns the Role named by s.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", errors.New("unknown role: " + s)
}

type UserStatus string

const (
	UserStatusPending             UserStatus = "pending"
	UserStatusPendingVerification UserStatus = "pending_verification"
	UserStatusOnboarding          UserStatus = "onboarding"
	UserStatusProfileSetup        UserStatus = "profile_setup"
	UserStatusActive              UserStatus = "active"
	UserStatusVerified            UserStatus = "verified"
	UserStatusTrial               UserStatus = "trial"
	UserStatusInactive            UserStatus = "inactive"
	UserStatusSuspended           UserStatus = "suspended"
	UserStatusDeleted             UserStatus = "deleted"
)

// PendingStatuses is the set of statuses of an unfinished registration.
var PendingStatuses = []UserStatus{
	UserStatusPending,
	UserStatusPendingVerification,
	UserStatusOnboarding,
	UserStatusProfileSetup,
}

var activeEquivalent = map[UserStatus]bool{
	UserStatusActive:       true,
	UserStatusVerified:     true,
	UserStatusOnboarding:   true,
	UserStatusProfileSetup: true,
	UserStatusTrial:        true,
}

// IsPending reports whether s is in the pending registration set.
func (s UserStatus) IsPending() bool {
	for _, p := range PendingStatuses {
		if s == p {
			return true
		}
	}
	return false
}

// IsActive maps a status to account activity. Statuses outside the
// active-equivalent table fall back to the record's raw flag.
func (s UserStatus) IsActive(rawIsActive bool) bool {
	if activeEquivalent[s] {
		return true
	}
	return rawIsActive
}

// User is a record in one of the per-role user stores.
type User struct {
	ID           string
	Role         Role
	Email        string
	Name         string
	PasswordHash string
	SubRole      string
	Title        string
	Status       UserStatus
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports the account activity derived from Status and IsActive.
func (u *User) Active() bool {
	return u.Status.IsActive(u.IsActive)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role == "" {
		return errors.New("role is required")
	}
	if u.Status == "" {
		return errors.New("status is required")
	}
	return nil
}
