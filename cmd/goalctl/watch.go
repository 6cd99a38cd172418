package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Dias221467/savings-goals/internal/database"
	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/repository"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/spf13/cobra"
)

func init() {
	var userID string
	var refresh time.Duration

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow one user's goals live, applying corrections as they are needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh <= 0 {
				return fmt.Errorf("--refresh must be positive")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, db, loc, err := connect(ctx)
			if err != nil {
				return err
			}
			defer database.Disconnect(context.Background(), db)

			out := cmd.OutOrStdout()
			var mu sync.Mutex

			notifications := services.NewNotificationService(repository.NewNotificationRepository(db, cfg.NotificationTTL), nil, loc)
			toasts := services.NotifierFunc(func(_ context.Context, n models.Notification) {
				mu.Lock()
				defer mu.Unlock()
				_, _ = fmt.Fprintf(out, "** %s: %s\n", n.Title, n.Message)
			})

			goals := services.NewGoalService(repository.NewGoalRepository(db), services.MultiNotifier{toasts, notifications}, nil, loc)
			session := services.NewGoalSync(goals, cfg.CorrectiveWriteTimeout)
			defer session.Close()

			session.Watch(func(v services.GoalView) {
				mu.Lock()
				defer mu.Unlock()
				printView(out, v)
			})
			session.SetUser(userID)

			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					session.Refresh()
				}
			}
		},
	}
	watchCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	watchCmd.Flags().DurationVar(&refresh, "refresh", time.Minute, "How often to re-derive against the clock")
	_ = watchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(watchCmd)
}

// printView renders one published view grouped like the goals page.
func printView(w io.Writer, v services.GoalView) {
	switch {
	case v.Error != "":
		_, _ = fmt.Fprintf(w, "[%s] %s\n", v.State, v.Error)
		if len(v.Goals) == 0 {
			return
		}
	case v.Loading:
		_, _ = fmt.Fprintf(w, "[%s] loading...\n", v.State)
		return
	default:
		_, _ = fmt.Fprintf(w, "[%s] %d goals\n", v.State, len(v.Goals))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	groups := []struct {
		name  string
		goals []models.Goal
	}{
		{"Active", models.ActiveGoals(v.Goals)},
		{"Achieved", models.AchievedGoals(v.Goals)},
		{"Missed", models.MissedGoals(v.Goals)},
	}
	for _, g := range groups {
		if len(g.goals) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\n", g.name)
		for _, goal := range g.goals {
			deadline := goal.Deadline
			if deadline == "" {
				deadline = "-"
			}
			_, _ = fmt.Fprintf(tw, "  %s\t%s / %s\t%d%%\t%s\t%s\n",
				goal.Title, goal.CurrentAmount.StringFixed(2), goal.TargetAmount.StringFixed(2), goal.Progress(), deadline, goal.Status)
		}
	}
	_ = tw.Flush()
}
