// Package server wires the identity components from config and runs their
// background loops.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"identity-core/internal/audit"
	auditrepo "identity-core/internal/audit/repository"
	"identity-core/internal/availability"
	"identity-core/internal/cleanup"
	"identity-core/internal/config"
	identityservice "identity-core/internal/identity/service"
	"identity-core/internal/security"
	sessionrepo "identity-core/internal/session/repository"
	sessionservice "identity-core/internal/session/service"
	"identity-core/internal/telemetry"
	userdomain "identity-core/internal/user/domain"
	userrepo "identity-core/internal/user/repository"
)

// Pinger reports database reachability. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds what New needs beyond config.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger
	// DB is the Postgres pool. If nil, the in-process repositories are used.
	DB *sql.DB
	// MeterProvider receives the metric instruments. If nil, metrics are discarded.
	MeterProvider metric.MeterProvider
	// LoggerProvider, if set, receives activity entries as OTel log records.
	LoggerProvider otellog.LoggerProvider
}

// Server holds the wired components.
type Server struct {
	Tokens       *security.TokenService
	Users        *userrepo.Directory
	Availability *availability.Checker
	Activity     *audit.Logger
	Sessions     *sessionservice.Store
	Cleanup      *cleanup.Scheduler
	Registration *identityservice.Registration
	Auth         *identityservice.AuthService
	Metrics      *telemetry.Metrics

	pinger Pinger
	kafka  *audit.KafkaSink
	log    *slog.Logger
}

// New builds every component from deps.
func New(deps Deps) (*Server, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mp := deps.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	metrics, err := telemetry.NewMetrics(mp)
	if err != nil {
		return nil, err
	}

	tokens, err := security.NewTokenService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return nil, err
	}

	users, err := userStores(deps.DB)
	if err != nil {
		return nil, err
	}

	defaults := availability.DefaultOptions()
	defaults.CacheTTL = cfg.CacheTTL()
	defaults.Timeout = cfg.LookupTimeout()
	checker := availability.NewChecker(users, availability.Config{
		Defaults:      defaults,
		SweepInterval: cfg.SweepInterval(),
		Logger:        logger,
		Metrics:       metrics,
	})

	s := &Server{
		Tokens:       tokens,
		Users:        users,
		Availability: checker,
		Metrics:      metrics,
		log:          logger.With("component", "server"),
	}

	var sinks []audit.Sink
	var sessions sessionrepo.Repository
	if deps.DB != nil {
		sinks = append(sinks, auditrepo.NewPostgresRepository(deps.DB))
		sessions = sessionrepo.NewPostgresRepository(deps.DB)
		s.pinger = deps.DB
	} else {
		sinks = append(sinks, auditrepo.NewMemoryRepository())
		sessions = sessionrepo.NewMemoryRepository()
	}
	if k := audit.NewKafkaSink(cfg.KafkaBrokersList(), cfg.ActivityKafkaTopic); k != nil {
		sinks = append(sinks, k)
		s.kafka = k
	}
	if deps.LoggerProvider != nil {
		sinks = append(sinks, audit.NewOTelSink(deps.LoggerProvider))
	}
	s.Activity = audit.NewLogger(logger, sinks...)

	s.Sessions = sessionservice.NewStore(sessions, s.Activity, sessionservice.Config{
		IdleAfter:    cfg.IdleAfter(),
		ReapInterval: cfg.ReapInterval(),
		Concurrency:  cfg.FanoutConcurrency,
		Logger:       logger,
		Metrics:      metrics,
	})
	s.Cleanup = cleanup.NewScheduler(users, checker, cleanup.Config{
		StaleAfter: cfg.StaleAfter(),
		Hour:       cfg.RegistrationCleanupHour,
		Logger:     logger,
		Metrics:    metrics,
	})

	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	s.Registration = identityservice.NewRegistration(users, checker, hasher, logger)
	s.Auth = identityservice.NewAuthService(users, hasher, tokens, s.Sessions, logger)
	return s, nil
}

func userStores(db *sql.DB) (*userrepo.Directory, error) {
	stores := make([]userrepo.Repository, 0, len(userdomain.Roles))
	for _, role := range userdomain.Roles {
		if db == nil {
			stores = append(stores, userrepo.NewMemoryRepository(role))
			continue
		}
		profile, err := userdomain.ProfileFor(role)
		if err != nil {
			return nil, err
		}
		stores = append(stores, userrepo.NewPostgresRepository(db, profile))
	}
	return userrepo.NewDirectory(stores...), nil
}

// Start launches the cache sweeper, the session reaper and the daily cleanup.
func (s *Server) Start(ctx context.Context) {
	s.Availability.Start(ctx)
	s.Sessions.Start(ctx)
	s.Cleanup.Start(ctx)
	s.log.Info("background loops started")
}

// Stop halts the loops started by Start and closes the Kafka writer.
func (s *Server) Stop() error {
	s.Cleanup.Stop()
	s.Sessions.Stop()
	s.Availability.Stop()
	var err error
	if s.kafka != nil {
		err = s.kafka.Close()
	}
	s.log.Info("background loops stopped")
	return err
}

// Ready returns nil when the backing database answers a ping. In-process
// stores are always ready.
func (s *Server) Ready(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.PingContext(ctx)
}
