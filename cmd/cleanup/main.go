// cleanup triggers registration cleanup by hand.
//
//	cleanup                     purge pending registrations older than REGISTRATION_STALE_AFTER
//	cleanup -stale-after 1h     override the staleness window
//	cleanup -pending            print pending counts per role and exit
//	cleanup -status a@b.com     print the registration status of one email and exit
//	cleanup -email a@b.com -role client   delete one pending registration
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"identity-core/internal/config"
	"identity-core/internal/db"
	"identity-core/internal/logging"
	"identity-core/internal/security"
	"identity-core/internal/server"
	userdomain "identity-core/internal/user/domain"
)

func main() {
	staleAfter := flag.String("stale-after", "", "Staleness window (e.g. 24h, 1d); defaults to REGISTRATION_STALE_AFTER")
	pending := flag.Bool("pending", false, "Print pending registration counts per role")
	status := flag.String("status", "", "Print the registration status of this email")
	email := flag.String("email", "", "Delete the pending registration for this email (requires -role)")
	role := flag.String("role", "", "Role of -email: client, employee or admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.Env)
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	srv, err := server.New(server.Deps{Config: cfg, Logger: logger, DB: conn})
	if err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}
	defer srv.Stop()

	if err := run(ctx, srv, cfg, *staleAfter, *pending, *status, *email, *role); err != nil {
		logger.Error("cleanup", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, srv *server.Server, cfg *config.Config, staleAfter string, pending bool, status, email, role string) error {
	switch {
	case pending:
		counts, err := srv.Cleanup.PendingCounts(ctx)
		if err != nil {
			return err
		}
		for _, r := range userdomain.Roles {
			fmt.Printf("%-9s %d\n", r, counts[r])
		}
		return nil

	case status != "":
		st, err := srv.Cleanup.Status(ctx, status)
		if err != nil {
			return err
		}
		if !st.Exists {
			fmt.Printf("%s: not registered\n", status)
			return nil
		}
		fmt.Printf("%s: role=%s status=%s created_at=%s needs_cleanup=%t\n",
			status, st.Role, st.Status, st.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), st.NeedsCleanup)
		return nil

	case email != "":
		r, err := userdomain.ParseRole(role)
		if err != nil {
			return err
		}
		res, err := srv.Cleanup.CleanupOne(ctx, email, r, "manual")
		if err != nil {
			return err
		}
		fmt.Printf("cleaned=%t\n", res.Cleaned)
		return nil
	}

	window := cfg.StaleAfter()
	if staleAfter != "" {
		d, err := security.ParseTTL(staleAfter)
		if err != nil {
			return fmt.Errorf("-stale-after: %w", err)
		}
		window = d
	}
	res, err := srv.Cleanup.BulkCleanup(ctx, window)
	if err != nil {
		return err
	}
	fmt.Printf("clients=%d employees=%d admins=%d total=%d\n",
		res.ClientsDeleted, res.EmployeesDeleted, res.AdminsDeleted, res.Total())
	return nil
}
