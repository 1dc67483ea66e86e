// Package telemetry holds the metric instruments recorded by the identity core.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "identity-core"

// Metrics groups the counters shared by the availability cache, session store
// and cleanup scheduler.
type Metrics struct {
	availabilityChecks metric.Int64Counter
	sessionsStarted    metric.Int64Counter
	sessionsEnded      metric.Int64Counter
	registrationsPurge metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	checks, err := meter.Int64Counter("identity.availability.checks",
		metric.WithDescription("Availability checks by outcome (hit, miss, fallback, error)."))
	if err != nil {
		return nil, err
	}
	started, err := meter.Int64Counter("identity.sessions.started",
		metric.WithDescription("Sessions created."))
	if err != nil {
		return nil, err
	}
	ended, err := meter.Int64Counter("identity.sessions.ended",
		metric.WithDescription("Sessions transitioned to offline, by reason."))
	if err != nil {
		return nil, err
	}
	purged, err := meter.Int64Counter("identity.registrations.purged",
		metric.WithDescription("Pending registrations deleted by cleanup, by role."))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		availabilityChecks: checks,
		sessionsStarted:    started,
		sessionsEnded:      ended,
		registrationsPurge: purged,
	}, nil
}

// AvailabilityCheck records one check with its outcome.
func (m *Metrics) AvailabilityCheck(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.availabilityChecks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// SessionStarted records a created session for role.
func (m *Metrics) SessionStarted(ctx context.Context, role string) {
	if m == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

// SessionEnded records a session going offline for reason.
func (m *Metrics) SessionEnded(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.sessionsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RegistrationsPurged records n deleted pending registrations for role.
func (m *Metrics) RegistrationsPurged(ctx context.Context, role string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.registrationsPurge.Add(ctx, n, metric.WithAttributes(attribute.String("role", role)))
}
