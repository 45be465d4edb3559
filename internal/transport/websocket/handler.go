package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iamasit07/pingline/backend/internal/config"
	"github.com/iamasit07/pingline/backend/internal/domain"
	"github.com/iamasit07/pingline/backend/internal/errs"
	"github.com/iamasit07/pingline/backend/internal/service/chat"
	"github.com/iamasit07/pingline/backend/internal/service/presence"
	"github.com/iamasit07/pingline/backend/internal/service/token"
	"github.com/iamasit07/pingline/backend/pkg/auth"
	"github.com/iamasit07/pingline/backend/pkg/httputil"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Handler is the connection gateway. It authenticates each socket via the
// credential service, registers it with the presence registry, and routes
// send events to the message store and delivery events to the recipient's
// live connections.
type Handler struct {
	ConnManager *ConnectionManager
	Registry    *presence.Registry
	Chat        *chat.Service
	Tokens      *token.Service
	Upgrader    websocket.Upgrader
}

func NewHandler(cm *ConnectionManager, registry *presence.Registry, chatSvc *chat.Service, tokens *token.Service) *Handler {
	return &Handler{
		ConnManager: cm,
		Registry:    registry,
		Chat:        chatSvc,
		Tokens:      tokens,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket upgrades the connection and runs its lifecycle.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// The credential may already be present on the upgrade request
	// (Authorization header or cookie). Clients that can't set either send
	// an explicit init event instead.
	presentedToken, _ := httputil.GetAccessTokenFromRequest(r)

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	h.handleConnection(conn, presentedToken)
}

// handleConnection manages the lifecycle of a single WebSocket connection:
// Connecting -> Authenticated -> Active -> Closed.
func (h *Handler) handleConnection(conn *websocket.Conn, presentedToken string) {
	done := make(chan struct{})
	defer close(done)

	// Keep-alive pinger
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// 1. Handshake: a connection that never authenticates must not linger.
	if presentedToken == "" {
		conn.SetReadDeadline(time.Now().Add(config.AppConfig.HandshakeTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error during init: %v", err)
			conn.Close()
			return
		}

		var event domain.ClientEvent
		if err := json.Unmarshal(data, &event); err != nil || event.Type != domain.EventInit || event.Token == "" {
			log.Printf("[WS] Missing initialization or token")
			conn.WriteJSON(domain.NewError("Expected init event with token"))
			conn.Close()
			return
		}
		presentedToken = event.Token
	}

	claims, err := h.Tokens.VerifyAccess(presentedToken)
	if err != nil {
		log.Printf("[WS] Invalid token during init: %v", err)
		conn.WriteJSON(domain.NewError("Invalid or expired token"))
		conn.Close()
		return
	}

	userID := claims.UserID
	username := claims.Username
	connID := auth.GenerateToken()

	log.Printf("[WS] Connection %s initialized for user: %s (ID: %d)", connID, username, userID)

	// 2. Authenticated: register before entering the event loop. Order
	// matters — the manager must know the socket before the registry makes
	// it a fan-out target.
	h.ConnManager.Add(connID, userID, conn)
	h.Registry.Register(userID, connID)

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// 3. Cleanup on exit
	defer func() {
		log.Printf("[WS] Connection %s closed for user %s", connID, username)
		h.Registry.Deregister(userID, connID)
		h.ConnManager.Remove(connID)
	}()

	// 4. Active: main event loop
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] User %d disconnected unexpectedly: %v", userID, err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var event domain.ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[WS] Invalid event format from user %d: %v", userID, err)
			h.ConnManager.Send(connID, domain.NewError("Invalid event format"))
			continue
		}

		h.processEvent(connID, userID, event)
	}
}

// processEvent routes one client event. Failures are reported back on the
// same connection and never terminate it.
func (h *Handler) processEvent(connID string, userID int64, event domain.ClientEvent) {
	switch event.Type {
	case domain.EventInit:
		// Already authenticated; a duplicate init is harmless.

	case domain.EventSendMessage:
		h.handleSend(connID, userID, event)

	default:
		h.ConnManager.Send(connID, domain.NewError("Unknown event type: "+event.Type))
	}
}

// handleSend persists the message, then fans it out to every live connection
// of the receiver. Delivery is at-most-once per connection and best-effort:
// an offline receiver gets nothing now and reads the message from history
// later. The sender's own connections are never echoed.
func (h *Handler) handleSend(connID string, senderID int64, event domain.ClientEvent) {
	msg, err := h.Chat.Append(senderID, event.To, event.Message, event.Media)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrInvalidArgument):
			h.ConnManager.Send(connID, domain.NewError(err.Error()))
		case errors.Is(err, errs.ErrPersistence):
			log.Printf("[WS] Failed to persist message from %d: %v", senderID, err)
			h.ConnManager.Send(connID, domain.NewError("Failed to send message, please retry"))
		default:
			h.ConnManager.Send(connID, domain.NewError("Failed to send message"))
		}
		return
	}

	delivery := domain.NewReceiveMessage(*msg)
	for _, cid := range h.Registry.LiveConnections(event.To) {
		if err := h.ConnManager.Send(cid, delivery); err != nil {
			log.Printf("[WS] Delivery to connection %s failed: %v", cid, err)
		}
	}
}
