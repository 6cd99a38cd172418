package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dias221467/savings-goals/internal/repository"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/Dias221467/savings-goals/pkg/middleware"
	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	Service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: service}
}

// GET /notifications
func (h *NotificationHandler) GetUserNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	notifications, err := h.Service.GetUserNotifications(r.Context(), claims.UserID)
	if err != nil {
		logger.Log.Errorf("Failed to fetch notifications: %v", err)
		http.Error(w, "Failed to get notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// PATCH /notifications/{id}/read
func (h *NotificationHandler) MarkAsReadHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := h.Service.MarkNotificationAsRead(r.Context(), claims.UserID, mux.Vars(r)["id"])
	if errors.Is(err, repository.ErrNotificationNotFound) {
		http.Error(w, "Notification not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.Errorf("Failed to mark notification as read: %v", err)
		http.Error(w, "Failed to mark as read", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

type ActivityHandler struct {
	Service *services.ActivityService
}

func NewActivityHandler(service *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{Service: service}
}

const defaultActivityLimit = 20

// GET /activities?limit=N
func (h *ActivityHandler) GetActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	activities, err := h.Service.GetRecentActivities(r.Context(), claims.UserID, limit)
	if err != nil {
		logger.Log.Errorf("Failed to fetch activities: %v", err)
		http.Error(w, "Failed to get activities", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}
