package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/garrettladley/slackerp/internal/app"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Link every chat account to its ERP user by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Directory.Sync(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
}

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <email>",
		Short: "Link the chat account registered under email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				identity, err := a.Directory.Connect(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, identity)
			})
		},
	}
}
