package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type activityRepo struct {
	err     error
	created []models.Activity
}

func (r *activityRepo) CreateActivity(ctx context.Context, a *models.Activity) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, *a)
	return nil
}

func (r *activityRepo) GetUserActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	return r.created, nil
}

// captureLog points logger.Log at a buffer configured like the server does.
func captureLog(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	out, formatter, lvl := logger.Log.Out, logger.Log.Formatter, logger.Log.GetLevel()
	t.Cleanup(func() {
		logger.Log.Out = out
		logger.Log.SetFormatter(formatter)
		logger.Log.SetLevel(lvl)
	})

	logger.InitLogger(level)
	buf := &bytes.Buffer{}
	logger.Log.Out = buf
	return buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "log line is not JSON: %s", line)
		lines = append(lines, entry)
	}
	return lines
}

func TestActivityService_LogsHonorConfiguredLevel(t *testing.T) {
	buf := captureLog(t, "warn")
	svc := NewActivityService(&activityRepo{})

	require.NoError(t, svc.LogActivity(context.Background(), "alice", "goal_created", "g1", "Created"))
	assert.Empty(t, buf.String())

	buf = captureLog(t, "debug")
	require.NoError(t, svc.LogActivity(context.Background(), "alice", "goal_created", "g1", "Created"))
	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "Activity logged successfully", lines[0]["msg"])
	assert.Equal(t, "alice", lines[0]["user_id"])
}

func TestActivityService_StoreFailure(t *testing.T) {
	buf := captureLog(t, "info")
	svc := NewActivityService(&activityRepo{err: errors.New("disk full")})

	err := svc.LogActivity(context.Background(), "alice", "goal_created", "g1", "Created")
	require.Error(t, err)

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "disk full", lines[0]["error"])
}
