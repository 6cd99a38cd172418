package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/services"
	jwtutil "github.com/Dias221467/savings-goals/pkg/jwt"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server frame types.
const (
	FrameGoals  = "goals"
	FrameToast  = "toast"
	FrameResult = "result"
)

// Client command types.
const (
	CommandCreate    = "create"
	CommandUpdate    = "update"
	CommandDelete    = "delete"
	CommandReconnect = "reconnect"
	CommandAuth      = "auth"
	CommandLogout    = "logout"
)

// WSFrame is everything the server pushes on /ws/goals.
type WSFrame struct {
	Type      string               `json:"type"`
	View      *services.GoalView   `json:"view,omitempty"`
	Toast     *models.Notification `json:"toast,omitempty"`
	RequestID string               `json:"requestId,omitempty"`
	OK        bool                 `json:"ok,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// WSCommand is a client request. RequestID is echoed on the result frame.
type WSCommand struct {
	Type      string             `json:"type"`
	RequestID string             `json:"requestId,omitempty"`
	ID        string             `json:"id,omitempty"`
	Goal      *models.GoalInput  `json:"goal,omitempty"`
	Update    *models.GoalUpdate `json:"update,omitempty"`
	Token     string             `json:"token,omitempty"`
}

const (
	wsWriteWait      = 10 * time.Second
	wsCommandTimeout = 15 * time.Second
)

// GoalFeedHandler serves one live goal session per websocket connection.
type GoalFeedHandler struct {
	Goals         *services.GoalService
	Registry      *services.SyncRegistry
	Notifications services.Notifier
	JWTSecret     string
	WriteTimeout  time.Duration

	upgrader websocket.Upgrader
}

// NewGoalFeedHandler creates a GoalFeedHandler. An empty allowedOrigins accepts any origin.
func NewGoalFeedHandler(goals *services.GoalService, registry *services.SyncRegistry, notifications services.Notifier, jwtSecret string, writeTimeout time.Duration, allowedOrigins []string) *GoalFeedHandler {
	return &GoalFeedHandler{
		Goals:         goals,
		Registry:      registry,
		Notifications: notifications,
		JWTSecret:     jwtSecret,
		WriteTimeout:  writeTimeout,
		upgrader:      websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type goalConn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *goalConn) send(f WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.ws.WriteJSON(f); err != nil {
		logger.Log.WithError(err).WithField("conn_id", c.id).Debug("WebSocket write failed")
	}
}

// GoalFeedWebSocketHandler handles GET /ws/goals?token=...
func (h *GoalFeedHandler) GoalFeedWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket auth failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logger.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	conn := &goalConn{id: uuid.NewString(), ws: ws}
	log := logger.Log.WithField("conn_id", conn.id)

	toasts := services.NotifierFunc(func(_ context.Context, n models.Notification) {
		conn.send(WSFrame{Type: FrameToast, Toast: &n})
	})
	session := services.NewGoalSync(h.Goals.WithNotifier(services.MultiNotifier{toasts, h.Notifications}), h.WriteTimeout)
	session.Watch(func(v services.GoalView) {
		conn.send(WSFrame{Type: FrameGoals, View: &v})
	})

	unregister := func() {}
	if h.Registry != nil {
		unregister = h.Registry.Add(session)
	}

	defer func() {
		unregister()
		session.Close()
		ws.Close()
		log.Info("Goal feed disconnected")
	}()

	log.WithField("user_id", claims.UserID).Info("Goal feed connected")
	session.SetUser(claims.UserID)

	for {
		var cmd WSCommand
		if err := ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("WebSocket read error")
			}
			return
		}

		result := WSFrame{Type: FrameResult, RequestID: cmd.RequestID, OK: true}
		if err := h.dispatch(r.Context(), session, cmd); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"command": cmd.Type}).Debug("Goal feed command failed")
			result.OK, result.Error = false, err.Error()
		}
		conn.send(result)
	}
}

func (h *GoalFeedHandler) dispatch(parent context.Context, session *services.GoalSync, cmd WSCommand) error {
	ctx, cancel := context.WithTimeout(parent, wsCommandTimeout)
	defer cancel()

	switch cmd.Type {
	case CommandCreate:
		if cmd.Goal == nil {
			return errMissingField("goal")
		}
		if err := cmd.Goal.Validate(); err != nil {
			return err
		}
		return session.Create(ctx, *cmd.Goal)
	case CommandUpdate:
		if cmd.ID == "" || cmd.Update == nil {
			return errMissingField("id and update")
		}
		if err := cmd.Update.Validate(); err != nil {
			return err
		}
		return session.Update(ctx, cmd.ID, *cmd.Update)
	case CommandDelete:
		if cmd.ID == "" {
			return errMissingField("id")
		}
		return session.Delete(ctx, cmd.ID)
	case CommandReconnect:
		session.Reconnect()
		return nil
	case CommandAuth:
		claims, err := jwtutil.ValidateToken(cmd.Token, h.JWTSecret)
		if err != nil {
			return errInvalidToken
		}
		session.SetUser(claims.UserID)
		return nil
	case CommandLogout:
		session.SetUser("")
		return nil
	default:
		return errUnknownCommand(cmd.Type)
	}
}
