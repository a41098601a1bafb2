package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ResetOptions describes which database to recreate and which schema to load.
type ResetOptions struct {
	DSN           string
	AdminDatabase string
	AdminPassword string
	SchemaPath    string
}

// ResetDatabase drops and recreates the database named in opts.DSN, then
// applies the schema. A missing schema leaves an empty database and is only
// reported as a warning.
func ResetDatabase(ctx context.Context, opts ResetOptions, logger *zap.Logger) error {
	appCfg, err := pgx.ParseConfig(opts.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	target := appCfg.Database
	if target == "" {
		return errors.New("dsn does not name a database")
	}
	if opts.AdminDatabase == "" {
		opts.AdminDatabase = "postgres"
	}
	if target == opts.AdminDatabase {
		return fmt.Errorf("refusing to reset the admin database %q", target)
	}

	adminCfg := appCfg.Copy()
	adminCfg.Database = opts.AdminDatabase
	if opts.AdminPassword != "" {
		adminCfg.Password = opts.AdminPassword
	}

	if err := recreateDatabase(ctx, adminCfg, target, logger); err != nil {
		return err
	}

	conn, err := pgx.ConnectConfig(ctx, appCfg)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close(context.Background())

	logger.Info("applying schema", zap.String("path", opts.SchemaPath))
	if err := RunMigrations(ctx, conn, opts.SchemaPath, logger); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("database recreated but schema not found", zap.String("path", opts.SchemaPath))
			return nil
		}
		return err
	}
	return nil
}

func recreateDatabase(ctx context.Context, adminCfg *pgx.ConnConfig, target string, logger *zap.Logger) error {
	admin, err := pgx.ConnectConfig(ctx, adminCfg)
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer admin.Close(context.Background())

	logger.Info("recreating database", zap.String("database", target))
	if _, err := admin.Exec(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`,
		target,
	); err != nil {
		return fmt.Errorf("terminate sessions: %w", err)
	}

	ident := pgx.Identifier{target}.Sanitize()
	if _, err := admin.Exec(ctx, "DROP DATABASE IF EXISTS "+ident); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	if _, err := admin.Exec(ctx, "CREATE DATABASE "+ident); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	logger.Info("database recreated", zap.String("database", target))
	return nil
}
