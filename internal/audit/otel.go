package audit

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"

	"identity-core/internal/audit/domain"
)

// recordEmitter is the part of otellog.Logger used here.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// OTelSink emits activity entries as OpenTelemetry log records.
type OTelSink struct {
	logger recordEmitter
}

// NewOTelSink returns a sink on provider's "identity-core.activity" logger, or
// nil when provider is nil.
func NewOTelSink(provider otellog.LoggerProvider) *OTelSink {
	if provider == nil {
		return nil
	}
	return &OTelSink{logger: provider.Logger("identity-core.activity")}
}

func (s *OTelSink) Append(ctx context.Context, a *domain.ActivityLog) error {
	if s == nil || a == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(a.CreatedAt)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName("session." + string(a.Action))
	if a.Details != "" {
		rec.SetBody(otellog.StringValue(a.Details))
	}
	rec.AddAttributes(
		otellog.String("activity_id", a.ID),
		otellog.String("session_id", a.SessionID),
		otellog.String("action", string(a.Action)),
	)
	if a.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", a.UserID))
	}
	s.logger.Emit(ctx, rec)
	return nil
}
