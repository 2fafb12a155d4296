// Package main applies the ARIA database schema and manages admin accounts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/aria/internal/audit"
	"github.com/onnwee/aria/internal/config"
	"github.com/onnwee/aria/internal/db"
	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/user"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	makeAdmin := flag.String("make-admin", "", "grant admin rights to this username after migrating")
	revokeAdmin := flag.String("revoke-admin", "", "revoke admin rights from this username after migrating")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("ARIA Database Migrator")
		fmt.Println()
		fmt.Println("Usage: migrate [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if err := databaseConfigError(errs); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.DatabaseURL, *makeAdmin, *revokeAdmin, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

// databaseConfigError returns the first error that prevents reaching the
// database. Other settings only matter to the API server.
func databaseConfigError(errs []error) error {
	for _, err := range errs {
		if errors.Is(err, config.ErrMissingDatabaseURL) {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, databaseURL, makeAdmin, revokeAdmin string, logger *slog.Logger) error {
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	applied, err := db.Migrate(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("schema up to date")
	} else {
		logger.Info("applied migrations", "migrations", applied)
	}

	users := user.NewPostgresRepository(conn)
	auditLog := audit.NewPostgresRepository(conn)
	return setAdmin(ctx, users, auditLog, makeAdmin, revokeAdmin, logger)
}

// setAdmin applies the grant and revoke flags and records each change in
// the audit log under the operator's OS user.
func setAdmin(ctx context.Context, users user.Repository, auditLog audit.Repository, grant, revoke string, logger *slog.Logger) error {
	changes := []struct {
		username string
		admin    bool
		action   string
	}{
		{grant, true, audit.ActionAdminGrant},
		{revoke, false, audit.ActionAdminRevoke},
	}
	for _, c := range changes {
		if c.username == "" {
			continue
		}
		if err := users.SetAdmin(ctx, c.username, c.admin); err != nil {
			return fmt.Errorf("failed to set admin=%t for %q: %w", c.admin, c.username, err)
		}
		logger.Info("updated admin rights", "username", c.username, "admin", c.admin)

		_, err := audit.Record(ctx, auditLog, audit.Entry{
			Username:   "cli:" + os.Getenv("USER"),
			Action:     c.action,
			EntityType: audit.EntityUser,
			EntityID:   c.username,
		})
		if err != nil {
			logger.Warn("failed to record audit log", "username", c.username, "error", err)
		}
	}
	return nil
}
