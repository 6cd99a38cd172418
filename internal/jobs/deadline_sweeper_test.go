package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	goals      []models.Goal
	failFor    string
	conflictOn string
	scanErr    error
}

func (m *memStore) ScanGoals(ctx context.Context, fn func(models.Goal) error) error {
	if m.scanErr != nil {
		return m.scanErr
	}
	for _, g := range m.goals {
		if err := fn(g); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) CorrectGoalState(ctx context.Context, userID, id string, from, to models.GoalState) (bool, error) {
	if id == m.failFor {
		return false, errors.New("write failed")
	}
	if id == m.conflictOn {
		return false, nil
	}
	for i := range m.goals {
		if m.goals[i].ID == id && m.goals[i].UserID == userID && m.goals[i].State() == from {
			m.goals[i].Status, m.goals[i].Archived = to.Status, to.Archived
			return true, nil
		}
	}
	return false, nil
}

func newGoal(id, current, target, deadline string, status models.GoalStatus, archived bool) models.Goal {
	return models.Goal{
		ID:            id,
		UserID:        "alice",
		Title:         "Goal " + id,
		CurrentAmount: decimal.RequireFromString(current),
		TargetAmount:  decimal.RequireFromString(target),
		Deadline:      deadline,
		Status:        status,
		Archived:      archived,
	}
}

func TestDeadlineSweeper_Run(t *testing.T) {
	store := &memStore{goals: []models.Goal{
		newGoal("expired", "500", "1000", "2026-10-18", models.GoalStatusInProgress, false),
		newGoal("archive", "1200", "1000", "2026-10-18", models.GoalStatusCompleted, false),
		newGoal("fine", "10", "1000", "", models.GoalStatusInProgress, false),
		newGoal("broken", "10", "1000", "2026-10-18", models.GoalStatusInProgress, false),
		newGoal("raced", "10", "1000", "2026-10-18", models.GoalStatusInProgress, false),
	}, failFor: "broken", conflictOn: "raced"}

	var notified []models.Notification
	notifier := services.NotifierFunc(func(ctx context.Context, n models.Notification) {
		notified = append(notified, n)
	})

	sweeper := NewDeadlineSweeper(store, notifier, time.UTC)
	sweeper.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	res, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 5, Corrected: 2, Conflicts: 1, Failed: 1, Archived: 1}, res)

	assert.Equal(t, models.GoalStatusExpired, store.goals[0].Status)
	assert.True(t, store.goals[1].Archived)
	require.Len(t, notified, 1)
	assert.Equal(t, "archive", notified[0].TargetID)
	assert.Equal(t, models.NotificationGoalArchived, notified[0].Type)

	// Second run only retries the writes that did not land.
	store.failFor, store.conflictOn = "", ""
	notified = nil
	res, err = sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Corrected)
	assert.Empty(t, notified)
}

func TestDeadlineSweeper_ScanError(t *testing.T) {
	sweeper := NewDeadlineSweeper(&memStore{scanErr: errors.New("cursor died")}, nil, nil)

	_, err := sweeper.Run(context.Background())
	assert.ErrorContains(t, err, "cursor died")
}
