package domain

import "time"

// Action names the session event an activity entry records.
type Action string

const (
	ActionLogin    Action = "login"
	ActionActivity Action = "activity"
	ActionLogout   Action = "logout"
)

// ActivityLog is one append-only entry in a session's forensic trail.
// Details is a JSON object.
type ActivityLog struct {
	ID        string
	SessionID string
	UserID    string
	Action    Action
	Details   string
	CreatedAt time.Time
}
