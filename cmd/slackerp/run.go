package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garrettladley/slackerp/internal/app"
)

func attendanceCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Post today's attendance summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if !force {
					return a.Attendance.Run(ctx)
				}
				ts, err := a.Attendance.Force(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Posted attendance: %s\n", ts)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "post even if already sent, outside hours, or on a holiday")
	return cmd
}

func remindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send timesheet reminders for yesterday",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Reminder.Send(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
}

func workloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "workload daily|weekly",
		Short:     "Post the unallocated hours report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"daily", "weekly"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if args[0] == "weekly" {
					return a.Workload.Weekly(ctx)
				}
				return a.Workload.Daily(ctx)
			})
		},
	}
}

func testChannelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-channel [channel]",
		Short: "Post a test message, to the attendance channel by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var channel string
			if len(args) == 1 {
				channel = args[0]
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Attendance.SendTest(ctx, channel); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Test message sent")
				return nil
			})
		},
	}
}
