package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"ragchat/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsChannel adapts a websocket connection to the registry's Channel.
// gorilla connections allow one concurrent writer, hence the mutex.
type wsChannel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsChannel) Send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(payload)
}

// WebSocketHandler upgrades the connection and registers it as the
// conversation's delivery channel for the lifetime of the connection.
// Browsers cannot set an Authorization header on websocket upgrades,
// so the JWT arrives as a query parameter.
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	userID, err := auth.ValidateJWT(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	if _, err := h.chatService.GetConversation(userID, conversationID); err != nil {
		h.writeServiceError(w, err, "Error opening delivery channel for %s by user %s: %v", conversationID, userID)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket for conversation %s: %v", conversationID, err)
		return
	}

	ch := &wsChannel{conn: conn}
	h.registry.Connect(conversationID, ch)
	defer func() {
		h.registry.Disconnect(conversationID, ch)
		conn.Close()
	}()

	// The channel is server-to-client only; drain client frames until
	// the connection drops.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
