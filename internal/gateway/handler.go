package gateway

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/orbitalops/satops-backend/internal/auth"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST layer enforces auth; origin policy is delegated to the
	// deployment's reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Service is the mission-service surface the gateway needs.
type Service interface {
	Commander
	GetSession(sessionID, userID string) (*domain.Session, error)
}

// Handler upgrades authenticated requests into session subscriptions.
type Handler struct {
	hub *Hub
	svc Service
}

// NewHandler creates the WebSocket handler.
func NewHandler(hub *Hub, svc Service) *Handler {
	return &Handler{hub: hub, svc: svc}
}

// Register mounts the stream endpoint.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/ws/sessions/:id", h.serve)
}

// serve binds one socket to one session the caller owns. On connect the
// client receives a heartbeat carrying the current session version so it can
// decide whether to backfill missed history over REST.
func (h *Handler) serve(c *gin.Context) {
	sessionID := c.Param("id")
	userID := auth.UserFirebaseUID(c)

	sess, err := h.svc.GetSession(sessionID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrNotAuthorized):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("gateway: upgrade failed for session %s: %v", sessionID, err)
		return
	}

	client := newClient(h.hub, h.svc, conn, sessionID, userID)
	client.deliver(domain.Event{
		Type:       domain.EventHeartbeat,
		Version:    sess.Version,
		Guaranteed: true,
		Data: domain.SessionStateChangedData{
			Status: sess.Status,
			Cause:  sess.Cause,
		},
	})
	client.run()
}
