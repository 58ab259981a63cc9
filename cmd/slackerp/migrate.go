package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garrettladley/slackerp/internal/app"
)

var migrationDirs = []string{
	filepath.Join("internal", "migrations", "sql"),
	filepath.Join("internal", "migrations", "postgres", "sql"),
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// opening the backend applies the embedded migrations
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Backend.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied successfully")
				return nil
			})
		},
	}
}

func newMigrationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new-migration <name>",
		Short: "Create a migration file for both SQLite and PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			for _, dir := range migrationDirs {
				entries, err := os.ReadDir(dir)
				if err != nil {
					return fmt.Errorf("failed to read migrations directory: %w", err)
				}

				filename := filepath.Join(dir, fmt.Sprintf("%03d_%s.sql", nextMigrationNum(entries), name))
				if _, err := os.Stat(filename); err == nil {
					return fmt.Errorf("migration file already exists: %s", filename)
				}

				content := fmt.Sprintf("-- Migration: %s\n\n", name)
				if err := os.WriteFile(filename, []byte(content), 0o600); err != nil {
					return fmt.Errorf("failed to create migration file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created migration: %s\n", filename)
			}
			return nil
		},
	}
}

func nextMigrationNum(entries []os.DirEntry) int {
	var next int
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		var num int
		if _, err := fmt.Sscanf(prefix, "%d", &num); err != nil {
			continue
		}
		next = max(next, num)
	}
	return next + 1
}
