package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Beep206/CyberVPN-sub003/internal/domain"
)

// Pings must arrive inside the read deadline the connection handler sets,
// or idle clients get dropped between events.
const (
	pingInterval  = 54 * time.Second
	writeDeadline = 10 * time.Second
)

type WsHub struct {
	Clients    map[string]map[*websocket.Conn]bool
	Broadcast  chan WsMessage
	Register   chan *WsClient
	Unregister chan *WsClient
	Logger     zerolog.Logger
}

type WsClient struct {
	UserID string
	Conn   *websocket.Conn
}

type WsMessage struct {
	Type        string                    `json:"type"`
	Transaction *domain.WalletTransaction `json:"transaction,omitempty"`
	Withdrawal  *domain.WithdrawalRequest `json:"withdrawal,omitempty"`
}

func NewWsHub(logger zerolog.Logger) *WsHub {
	return &WsHub{
		Clients:    make(map[string]map[*websocket.Conn]bool),
		Broadcast:  make(chan WsMessage, 100),
		Register:   make(chan *WsClient, 100),
		Unregister: make(chan *WsClient, 100),
		Logger:     logger,
	}
}

func (h *WsHub) Run() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.Register:
			if h.Clients[client.UserID] == nil {
				h.Clients[client.UserID] = make(map[*websocket.Conn]bool)
			}
			h.Clients[client.UserID][client.Conn] = true
			h.Logger.Info().
				Str("user_id", client.UserID).
				Int("connection_count", len(h.Clients[client.UserID])).
				Msg("WebSocket client registered")

		case client := <-h.Unregister:
			if clients, ok := h.Clients[client.UserID]; ok {
				delete(clients, client.Conn)
				if len(clients) == 0 {
					delete(h.Clients, client.UserID)
				}
				client.Conn.Close()
				h.Logger.Info().
					Str("user_id", client.UserID).
					Int("connection_count", len(clients)).
					Msg("WebSocket client unregistered")
			}

		case message := <-h.Broadcast:
			h.deliver(message)

		case <-ticker.C:
			h.pingClients()
		}
	}
}

// pingClients keeps idle connections alive; the peer's pong resets the read
// deadline on the handler side. Connections that fail the write are dropped.
func (h *WsHub) pingClients() {
	for userID, clients := range h.Clients {
		for conn := range clients {
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Logger.Err(err).
					Str("user_id", userID).
					Msg("Failed to ping WebSocket client")
				conn.Close()
				delete(clients, conn)
			}
		}
		if len(clients) == 0 {
			delete(h.Clients, userID)
		}
	}
}

func (h *WsHub) deliver(message WsMessage) {
	var userID string
	switch message.Type {
	case "transaction":
		if message.Transaction != nil {
			userID = message.Transaction.UserID
		}
	case "withdrawal":
		if message.Withdrawal != nil {
			userID = message.Withdrawal.UserID
		}
	}

	clients, ok := h.Clients[userID]
	if !ok || userID == "" {
		return
	}

	for conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(message); err != nil {
			h.Logger.Err(err).
				Str("user_id", userID).
				Str("type", message.Type).
				Msg("Failed to send WebSocket message")
			conn.Close()
			delete(clients, conn)
		}
	}
	if len(clients) == 0 {
		delete(h.Clients, userID)
	}
}

// PublishTransaction satisfies the wallet service's event publisher.
func (h *WsHub) PublishTransaction(tx domain.WalletTransaction) {
	h.Broadcast <- WsMessage{
		Type:        "transaction",
		Transaction: &tx,
	}
}

// PublishWithdrawal satisfies the withdrawal service's event publisher.
func (h *WsHub) PublishWithdrawal(withdrawal domain.WithdrawalRequest) {
	h.Broadcast <- WsMessage{
		Type:       "withdrawal",
		Withdrawal: &withdrawal,
	}
}
