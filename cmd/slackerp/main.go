package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/garrettladley/slackerp/internal/app"
	"github.com/garrettladley/slackerp/internal/config"
	"github.com/garrettladley/slackerp/internal/version"
	"github.com/garrettladley/slackerp/internal/xslog"
	go_json "github.com/goccy/go-json"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "slackerp",
		Short:   "Operate the Slack and ERPNext connector",
		Version: version.Get(),
	}

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(attendanceCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(workloadCmd())
	rootCmd.AddCommand(testChannelCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(newMigrationCmd())

	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}

// withApp builds the application from the environment for one command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	logger := xslog.NewLoggerFromEnv(cmd.ErrOrStderr())
	ctx = xslog.WithLogger(ctx, logger)

	holder, err := config.Load()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, holder, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := go_json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
