// Package audit records the append-only activity trail of sessions. Writes are
// best-effort: a failing sink is logged and never fails the session operation.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"identity-core/internal/audit/domain"
)

// Sink receives activity entries. The activity repository, KafkaSink and
// OTelSink all implement it.
type Sink interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
}

// ActivityRecorder writes a single activity entry. Used by the session store.
type ActivityRecorder interface {
	Record(ctx context.Context, sessionID, userID string, action domain.Action, details map[string]any)
}

// Logger implements ActivityRecorder by fanning each entry out to its sinks.
type Logger struct {
	sinks []Sink
	log   *slog.Logger
	now   func() time.Time
}

// NewLogger returns a Logger writing to sinks. Nil sinks are skipped.
func NewLogger(logger *slog.Logger, sinks ...Sink) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{log: logger.With("component", "audit"), now: time.Now}
	for _, s := range sinks {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
	return l
}

// Record builds one entry and appends it to every sink. Errors are logged and not returned.
func (l *Logger) Record(ctx context.Context, sessionID, userID string, action domain.Action, details map[string]any) {
	if l == nil || len(l.sinks) == 0 {
		return
	}
	body := "{}"
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			l.log.Warn("activity details not serializable", "session_id", sessionID, "action", action, "error", err)
		} else {
			body = string(b)
		}
	}
	entry := &domain.ActivityLog{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    userID,
		Action:    action,
		Details:   body,
		CreatedAt: l.now().UTC(),
	}
	for _, s := range l.sinks {
		if err := s.Append(ctx, entry); err != nil {
			l.log.Error("failed to record activity", "session_id", sessionID, "action", action, "error", err)
		}
	}
}
