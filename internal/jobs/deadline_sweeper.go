package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/internal/goalrule"
	"github.com/Dias221467/savings-goals/internal/metrics"
	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/sirupsen/logrus"
)

// SweepStore is the part of the goal repository the sweeper needs.
type SweepStore interface {
	ScanGoals(ctx context.Context, fn func(models.Goal) error) error
	CorrectGoalState(ctx context.Context, userID, id string, from, to models.GoalState) (bool, error)
}

type DeadlineSweeper struct {
	Store    SweepStore
	Notifier services.Notifier
	Location *time.Location

	now func() time.Time
}

// NewDeadlineSweeper creates a new instance of DeadlineSweeper
func NewDeadlineSweeper(store SweepStore, notifier services.Notifier, loc *time.Location) *DeadlineSweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &DeadlineSweeper{
		Store:    store,
		Notifier: notifier,
		Location: loc,
		now:      time.Now,
	}
}

// SweepResult summarizes one Run.
type SweepResult struct {
	Scanned   int
	Corrected int
	Conflicts int
	Failed    int
	Archived  int
}

type pendingFix struct {
	goal models.Goal
	to   models.GoalState
}

// Run brings the stored status/archived of every goal in line with the derivation
// rule, so goals of users without a live session do not stay stale. Individual write
// failures are counted and logged; only a failed scan is returned as an error.
func (d *DeadlineSweeper) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := d.now()

	var fixes []pendingFix
	err := d.Store.ScanGoals(ctx, func(goal models.Goal) error {
		res.Scanned++
		if state, changed := goalrule.Reconcile(goal, now, d.Location); changed {
			fixes = append(fixes, pendingFix{goal: goal, to: state})
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to scan goals: %w", err)
	}

	for _, f := range fixes {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		d.apply(ctx, f, &res)
	}

	logger.Log.WithFields(logrus.Fields{
		"scanned":   res.Scanned,
		"corrected": res.Corrected,
		"conflicts": res.Conflicts,
		"failed":    res.Failed,
		"archived":  res.Archived,
	}).Info("Deadline sweep completed")
	return res, nil
}

func (d *DeadlineSweeper) apply(ctx context.Context, f pendingFix, res *SweepResult) {
	log := logger.Log.WithFields(logrus.Fields{"user_id": f.goal.UserID, "goal_id": f.goal.ID})

	matched, err := d.Store.CorrectGoalState(ctx, f.goal.UserID, f.goal.ID, f.goal.State(), f.to)
	switch {
	case err != nil:
		res.Failed++
		metrics.CorrectiveWrites.WithLabelValues(metrics.SourceSweeper, metrics.ResultError).Inc()
		log.WithError(err).Warn("Sweeper failed to correct goal")
		return
	case !matched:
		// A live session or a user edit got there first.
		res.Conflicts++
		metrics.CorrectiveWrites.WithLabelValues(metrics.SourceSweeper, metrics.ResultConflict).Inc()
		return
	}

	res.Corrected++
	metrics.CorrectiveWrites.WithLabelValues(metrics.SourceSweeper, metrics.ResultOK).Inc()

	if f.to.Archived && !f.goal.Archived && d.Notifier != nil {
		res.Archived++
		metrics.ArchiveNotifications.Inc()
		d.Notifier.Notify(ctx, models.Notification{
			UserID:   f.goal.UserID,
			Type:     models.NotificationGoalArchived,
			Title:    "🎯 Goal Archived",
			Message:  fmt.Sprintf("%q was completed and archived.", f.goal.Title),
			TargetID: f.goal.ID,
		})
	}
}
