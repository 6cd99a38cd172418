package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Dias221467/savings-goals/internal/database"
	"github.com/Dias221467/savings-goals/internal/jobs"
	"github.com/Dias221467/savings-goals/internal/repository"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/spf13/cobra"
)

func init() {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Correct the stored status of every goal once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, db, loc, err := connect(ctx)
			if err != nil {
				return err
			}
			defer database.Disconnect(context.Background(), db)

			goals := repository.NewGoalRepository(db)
			notifications := services.NewNotificationService(repository.NewNotificationRepository(db, cfg.NotificationTTL), goals, loc)

			res, err := jobs.NewDeadlineSweeper(goals, notifications, loc).Run(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d corrected=%d conflicts=%d failed=%d archived=%d\n",
				res.Scanned, res.Corrected, res.Conflicts, res.Failed, res.Archived)
			return nil
		},
	}
	rootCmd.AddCommand(sweepCmd)
}
