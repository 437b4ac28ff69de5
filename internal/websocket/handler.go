package websocket

import (
	"log"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/jthomaz/cartwise/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients scoped to the authenticated user.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Allow connections from any origin (household LAN)
		})
		if err != nil {
			log.Printf("websocket: accept: %v", err)
			return
		}

		client := NewClient(hub, conn, userID)
		client.Run(r.Context())
	}
}
