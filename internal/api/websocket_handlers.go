package api

import (
	"log"
	"net/http"

	"magazyn-plikow/internal/auth"
	"magazyn-plikow/internal/websocket"
)

// ServeWsHandler upgrades the connection and attaches it to the event hub.
// The token travels as a query parameter because browsers cannot set headers
// on websocket upgrade requests.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: Failed to upgrade websocket connection: %v", err)
		return
	}

	client := websocket.NewClient(s.wsHub, conn, claims.UserID)
	s.wsHub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
