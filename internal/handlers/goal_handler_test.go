package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/services"
	jwtutil "github.com/Dias221467/savings-goals/pkg/jwt"
	"github.com/Dias221467/savings-goals/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedGoal(id, userID, current, target, deadline string, status models.GoalStatus) models.Goal {
	return models.Goal{
		ID:            id,
		UserID:        userID,
		Title:         "Goal " + id,
		CurrentAmount: decimal.RequireFromString(current),
		TargetAmount:  decimal.RequireFromString(target),
		Deadline:      deadline,
		Status:        status,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newGoalHandler(store *memStore) *GoalHandler {
	return NewGoalHandler(services.NewGoalService(store, nil, nil, time.UTC))
}

func request(method, target, body, userID string, vars map[string]string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != "" {
		r = r.WithContext(middleware.WithUser(r.Context(), &jwtutil.Claims{UserID: userID}))
	}
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	return r
}

func TestCreateGoalHandler(t *testing.T) {
	store := newMemStore()
	h := newGoalHandler(store)

	rec := httptest.NewRecorder()
	h.CreateGoalHandler(rec, request(http.MethodPost, "/goals", `{"title":"Laptop","targetAmount":1000,"currentAmount":50}`, "alice", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Goal
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "goal-1", created.ID)
	assert.Equal(t, "alice", created.UserID)
	assert.True(t, created.CurrentAmount.IsZero())
	assert.False(t, created.CreatedAt.IsZero())

	_, ok := store.goal("goal-1")
	assert.True(t, ok)
}

func TestCreateGoalHandler_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		userID string
		want   int
	}{
		{"unauthenticated", `{"title":"Laptop","targetAmount":1000}`, "", http.StatusUnauthorized},
		{"malformed", `{"title":`, "alice", http.StatusBadRequest},
		{"missing title", `{"title":" ","targetAmount":1000}`, "alice", http.StatusBadRequest},
		{"zero target", `{"title":"Laptop","targetAmount":0}`, "alice", http.StatusBadRequest},
		{"bad deadline", `{"title":"Laptop","targetAmount":10,"deadline":"next week"}`, "alice", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			rec := httptest.NewRecorder()
			newGoalHandler(store).CreateGoalHandler(rec, request(http.MethodPost, "/goals", tt.body, tt.userID, nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, store.goals)
		})
	}
}

func TestGetGoalsHandler_Groups(t *testing.T) {
	store := newMemStore(
		storedGoal("done", "alice", "1200", "1000", "2000-01-01", models.GoalStatusCompleted),
		storedGoal("missed", "alice", "10", "1000", "2000-01-01", models.GoalStatusInProgress),
		storedGoal("open", "alice", "250", "1000", "2999-01-01", models.GoalStatusInProgress),
		storedGoal("other", "bob", "1", "10", "", models.GoalStatusInProgress),
	)
	h := newGoalHandler(store)

	tests := []struct {
		group string
		want  []string
	}{
		{"", []string{"done", "missed", "open"}},
		{"active", []string{"open"}},
		{"achieved", []string{"done"}},
		{"missed", []string{"missed"}},
	}
	for _, tt := range tests {
		t.Run("group="+tt.group, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetGoalsHandler(rec, request(http.MethodGet, "/goals?group="+tt.group, "", "alice", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var got []goalResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			ids := make([]string, 0, len(got))
			for _, g := range got {
				ids = append(ids, g.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	rec := httptest.NewRecorder()
	h.GetGoalsHandler(rec, request(http.MethodGet, "/goals?group=active", "", "alice", nil))
	var active []goalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&active))
	require.Len(t, active, 1)
	assert.Equal(t, 25, active[0].Progress)

	// Reads never write.
	g, _ := store.goal("done")
	assert.False(t, g.Archived)

	rec = httptest.NewRecorder()
	h.GetGoalsHandler(rec, request(http.MethodGet, "/goals?group=someday", "", "alice", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateGoalHandler(t *testing.T) {
	store := newMemStore(
		storedGoal("g1", "alice", "10", "1000", "", models.GoalStatusInProgress),
		storedGoal("b1", "bob", "10", "1000", "", models.GoalStatusInProgress),
	)
	h := newGoalHandler(store)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"amount", "g1", `{"currentAmount":"400.50"}`, http.StatusOK},
		{"status is derived", "g1", `{"status":"completed"}`, http.StatusBadRequest},
		{"empty", "g1", `{}`, http.StatusBadRequest},
		{"foreign goal", "b1", `{"title":"mine now"}`, http.StatusNotFound},
		{"missing goal", "nope", `{"title":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.UpdateGoalHandler(rec, request(http.MethodPatch, "/goals/"+tt.id, tt.body, "alice", map[string]string{"id": tt.id}))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	g, _ := store.goal("g1")
	assert.True(t, g.CurrentAmount.Equal(decimal.RequireFromString("400.50")))
	assert.Equal(t, models.GoalStatusInProgress, g.Status)
	b, _ := store.goal("b1")
	assert.Equal(t, "Goal b1", b.Title)
}

func TestArchiveAndDeleteGoalHandlers(t *testing.T) {
	store := newMemStore(storedGoal("g1", "alice", "10", "1000", "", models.GoalStatusInProgress))
	h := newGoalHandler(store)
	vars := map[string]string{"id": "g1"}

	rec := httptest.NewRecorder()
	h.ArchiveGoalHandler(rec, request(http.MethodPost, "/goals/g1/archive", "", "alice", vars))
	require.Equal(t, http.StatusOK, rec.Code)
	g, _ := store.goal("g1")
	assert.True(t, g.Archived)

	rec = httptest.NewRecorder()
	h.UnarchiveGoalHandler(rec, request(http.MethodPost, "/goals/g1/unarchive", "", "alice", vars))
	require.Equal(t, http.StatusOK, rec.Code)
	g, _ = store.goal("g1")
	assert.False(t, g.Archived)

	rec = httptest.NewRecorder()
	h.DeleteGoalHandler(rec, request(http.MethodDelete, "/goals/missing", "", "alice", map[string]string{"id": "missing"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.DeleteGoalHandler(rec, request(http.MethodDelete, "/goals/g1", "", "alice", vars))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, ok := store.goal("g1")
	assert.False(t, ok)
}
