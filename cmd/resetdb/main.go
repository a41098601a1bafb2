// resetdb drops and recreates the application database, then loads the schema.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/config"
	"github.com/chamados-app/chamados-api/internal/observability"
	"github.com/chamados-app/chamados-api/internal/persistence"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var schema, adminDB string
	var yes bool
	flagSet := pflag.NewFlagSet("resetdb", pflag.ContinueOnError)
	flagSet.StringVar(&schema, "schema", cfg.Postgres.MigrationsDir, "schema file or directory of .sql files")
	flagSet.StringVar(&adminDB, "admin-db", cfg.Postgres.AdminDatabase, "database used to drop and create the target")
	flagSet.BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	if !yes && !confirm("This drops every table and row in the configured database. Continue? [y/N] ") {
		return errors.New("aborted")
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	err = persistence.ResetDatabase(ctx, persistence.ResetOptions{
		DSN:           cfg.Postgres.DSN,
		AdminDatabase: adminDB,
		AdminPassword: os.Getenv("POSTGRES_ADMIN_PASSWORD"),
		SchemaPath:    schema,
	}, logger)
	if err != nil {
		logger.Error("reset failed", zap.Error(err))
		return err
	}
	logger.Info("database reset complete")
	return nil
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
