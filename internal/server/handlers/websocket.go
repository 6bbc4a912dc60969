package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/server/websocket"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		// In production, implement proper origin checking
		return true
	},
}

// WebSocketHandler upgrades authenticated connections and registers them with
// the event hub so the user receives their own ledger and withdrawal events.
type WebSocketHandler struct {
	hub    *websocket.WsHub
	logger zerolog.Logger
}

func NewWebSocketHandler(hub *websocket.WsHub, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Authentication required",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "Failed to upgrade to WebSocket",
		})
		return
	}

	client := &websocket.WsClient{
		UserID: userID,
		Conn:   conn,
	}
	h.hub.Register <- client

	h.logger.Info().Str("user_id", userID).Msg("WebSocket client connected")

	go h.readLoop(client)
}

// readLoop drains inbound frames until the peer goes away. The hub only
// pushes; anything the client sends is discarded.
func (h *WebSocketHandler) readLoop(client *websocket.WsClient) {
	defer func() {
		h.hub.Unregister <- client
		h.logger.Info().Str("user_id", client.UserID).Msg("WebSocket client disconnected")
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseAbnormalClosure) {
				h.logger.Error().Err(err).Str("user_id", client.UserID).Msg("Unexpected WebSocket close error")
			}
			return
		}
	}
}
