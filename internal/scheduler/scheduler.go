package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/internal/jobs"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Schedules are cron specs for each background job. An empty spec disables the job.
type Schedules struct {
	Refresh string
	Sweep   string
	DueSoon string
	Cleanup string
}

// Jobs are the collaborators the scheduled functions call into.
type Jobs struct {
	Sessions      *services.SyncRegistry
	Sweeper       *jobs.DeadlineSweeper
	Notifications *services.NotificationService
}

// jobTimeout bounds a single scheduled run.
const jobTimeout = 5 * time.Minute

// New registers the goal jobs on a cron runner in loc. The caller starts and stops it.
func New(loc *time.Location, s Schedules, j Jobs) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	cronLog := cron.PrintfLogger(logger.Log)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	// Calendar time moves on without any store change; re-run every live session's pass.
	if j.Sessions != nil {
		if err := add(c, "refresh", s.Refresh, func(context.Context) error {
			n := j.Sessions.RefreshAll()
			logger.Log.WithField("count", n).Debug("Refreshed live goal sessions")
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if j.Sweeper != nil {
		if err := add(c, "sweep", s.Sweep, func(ctx context.Context) error {
			_, err := j.Sweeper.Run(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if j.Notifications != nil {
		if err := add(c, "due_soon", s.DueSoon, j.Notifications.CheckGoalDueSoon); err != nil {
			return nil, err
		}
		if err := add(c, "cleanup", s.Cleanup, j.Notifications.DeleteExpiredNotifications); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func add(c *cron.Cron, name, spec string, fn func(context.Context) error) error {
	if spec == "" {
		return nil
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.Log.WithError(err).WithField("job", name).Error("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}
	logger.Log.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("Scheduled job registered")
	return nil
}
