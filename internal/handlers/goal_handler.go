package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/repository"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/Dias221467/savings-goals/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// GoalHandler handles HTTP requests related to goals.
type GoalHandler struct {
	Service *services.GoalService
}

// NewGoalHandler creates a new instance of GoalHandler.
func NewGoalHandler(goalService *services.GoalService) *GoalHandler {
	return &GoalHandler{Service: goalService}
}

// goalResponse adds the display progress to a goal.
type goalResponse struct {
	models.Goal
	Progress int `json:"progress"`
}

func toGoalResponses(goals []models.Goal) []goalResponse {
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalResponse{Goal: g, Progress: g.Progress()})
	}
	return out
}

// GetGoalsHandler lists the caller's goals with derived status values.
// ?group=active|achieved|missed narrows the list the way the goals page groups it.
func (h *GoalHandler) GetGoalsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	goals, err := h.Service.List(r.Context(), claims.UserID)
	if err != nil {
		writeGoalError(w, err, "Failed to fetch goals")
		return
	}

	switch group := r.URL.Query().Get("group"); group {
	case "":
	case "active":
		goals = models.ActiveGoals(goals)
	case "achieved":
		goals = models.AchievedGoals(goals)
	case "missed":
		goals = models.MissedGoals(goals)
	default:
		http.Error(w, "Unknown group", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, toGoalResponses(goals))
}

// CreateGoalHandler handles the creation of a new goal.
func (h *GoalHandler) CreateGoalHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		logger.Log.Warn("Unauthorized access attempt during goal creation")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input models.GoalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		logger.Log.WithError(err).Warn("Invalid request payload during goal creation")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := input.Validate(); err != nil {
		writeGoalError(w, err, "")
		return
	}

	created, err := h.Service.Create(r.Context(), claims.UserID, input)
	if err != nil {
		writeGoalError(w, err, "Failed to create goal")
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": claims.UserID,
		"goal_id": created.ID,
	}).Info("Goal successfully created")

	writeJSON(w, http.StatusCreated, created)
}

// UpdateGoalHandler applies a partial update. Status cannot be set by clients.
func (h *GoalHandler) UpdateGoalHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	goalID := mux.Vars(r)["id"]

	var update models.GoalUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := update.Validate(); err != nil {
		writeGoalError(w, err, "")
		return
	}

	if err := h.Service.Update(r.Context(), claims.UserID, goalID, update); err != nil {
		writeGoalError(w, err, "Failed to update goal")
		return
	}

	logger.Log.WithFields(logrus.Fields{"user_id": claims.UserID, "goal_id": goalID}).Info("Goal updated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Goal updated"})
}

// DeleteGoalHandler handles deleting a goal.
func (h *GoalHandler) DeleteGoalHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	goalID := mux.Vars(r)["id"]

	if err := h.Service.Delete(r.Context(), claims.UserID, goalID); err != nil {
		writeGoalError(w, err, "Failed to delete goal")
		return
	}

	logger.Log.WithFields(logrus.Fields{"user_id": claims.UserID, "goal_id": goalID}).Info("Goal deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Goal deleted successfully"})
}

// ArchiveGoalHandler is the manual archive toggle.
func (h *GoalHandler) ArchiveGoalHandler(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// UnarchiveGoalHandler reverses ArchiveGoalHandler.
func (h *GoalHandler) UnarchiveGoalHandler(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *GoalHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	goalID := mux.Vars(r)["id"]

	if err := h.Service.Update(r.Context(), claims.UserID, goalID, models.GoalUpdate{Archived: &archived}); err != nil {
		writeGoalError(w, err, "Failed to update goal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"archived": archived})
}

// writeGoalError maps service errors to status codes. fallback is the message for
// unexpected failures.
func writeGoalError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrInvalidGoal):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrGoalNotFound):
		http.Error(w, "Goal not found", http.StatusNotFound)
	case errors.Is(err, services.ErrNoSession):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	default:
		logger.Log.WithError(err).Error(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("Failed to encode response")
	}
}
