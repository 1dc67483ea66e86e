package domain

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	// StatusIdle is derived, never stored: an online session with no recent activity.
	StatusIdle Status = "idle"
)

// Device is the best-effort classification of the client's user agent.
type Device struct {
	Type     string
	Browser  string
	OS       string
	Platform string
}

// Location is where the request came from. Country and City are optional.
type Location struct {
	IP       string
	Country  string
	City     string
	Timezone string
}

// Security holds transport facts about the login request.
type Security struct {
	UserAgent    string
	IsSecure     bool
	TokenVersion int
}

// Session is one authenticated login instance. Status is offline iff LogoutAt
// is set; Duration is set once, at logout, in whole minutes.
type Session struct {
	ID             string
	UserID         string
	UserRole       string
	UserEmail      string
	UserName       string
	LoginAt        time.Time
	LogoutAt       *time.Time
	LastActivity   time.Time
	Status         Status
	Device         Device
	Location       Location
	Security       Security
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	Duration       *int
	ActivityCount  int64
}

// IsOnline reports whether the session has not been logged out.
func (s *Session) IsOnline() bool {
	return s.Status != StatusOffline
}

// StateAt derives the state at now. An online session whose last activity is
// older than idleAfter is idle. A non-positive idleAfter disables idling.
func (s *Session) StateAt(now time.Time, idleAfter time.Duration) Status {
	if !s.IsOnline() {
		return StatusOffline
	}
	if idleAfter > 0 && now.Sub(s.LastActivity) > idleAfter {
		return StatusIdle
	}
	return StatusOnline
}

// TokenExpired reports whether the access token bound to the session has passed its expiry at now.
func (s *Session) TokenExpired(now time.Time) bool {
	return s.TokenExpiresAt.Before(now)
}

// DurationMinutes returns the whole minutes between login and logout, never negative.
func DurationMinutes(loginAt, logoutAt time.Time) int {
	d := logoutAt.Sub(loginAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Stats aggregates sessions, optionally for one user.
type Stats struct {
	TotalSessions int64
	// ActiveSessions counts every online session, idle ones included.
	ActiveSessions         int64
	IdleSessions           int64
	AverageDurationMinutes float64
	TotalActivity          int64
}
