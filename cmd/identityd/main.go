// identityd runs the identity engine: it wires the stores, starts the cache
// sweeper, the session reaper and the daily registration cleanup, and stops
// them on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"identity-core/internal/config"
	"identity-core/internal/db"
	"identity-core/internal/db/migrate"
	"identity-core/internal/logging"
	"identity-core/internal/server"
	otelsetup "identity-core/internal/telemetry/otel"
)

func main() {
	runMigrations := flag.Bool("migrate", false, "Apply pending migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Error("otel", "error", err)
		os.Exit(1)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	deps := server.Deps{
		Config:        cfg,
		Logger:        logger,
		MeterProvider: providers.MeterProvider,
	}
	if cfg.OTLPEndpoint != "" {
		deps.LoggerProvider = providers.LoggerProvider
	}
	if cfg.DatabaseURL != "" {
		if *runMigrations {
			if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
				logger.Error("migrate", "error", err)
				os.Exit(1)
			}
		}
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		deps.DB = conn
	} else {
		logger.Warn("DATABASE_URL is not set; using in-process stores")
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}
	srv.Start(ctx)
	logger.Info("identityd started", "env", cfg.Env, "cleanup_hour", cfg.RegistrationCleanupHour)

	<-ctx.Done()
	logger.Info("shutting down...")
	if err := srv.Stop(); err != nil {
		logger.Warn("stop", "error", err)
	}
	logger.Info("identityd stopped")
}
