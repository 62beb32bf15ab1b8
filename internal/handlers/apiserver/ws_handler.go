package apiserver

import (
	"log"
	"net/http"
	"strings"

	"lembas/internal/auth"
	"lembas/internal/config"
	"lembas/internal/services"
	"lembas/internal/websocket"
)

// WSHandler upgrades realtime-sync connections. The JWT is validated at
// upgrade time; connections without a valid token are refused.
type WSHandler struct {
	hub       *websocket.Hub
	notifier  *services.Notifier
	jwtKey    string
	blacklist auth.TokenBlacklist
	wsCfg     config.WebSocketConfig
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *websocket.Hub, notifier *services.Notifier, jwtKey string, blacklist auth.TokenBlacklist, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{hub: hub, notifier: notifier, jwtKey: jwtKey, blacklist: blacklist, wsCfg: wsCfg}
}

// ServeHTTP handles GET /ws. Browsers cannot set headers on WebSocket
// requests, so the token may arrive as a query parameter instead.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = strings.TrimSpace(parts[1])
		}
	}
	if tokenString == "" {
		http.Error(w, "Authorization token required", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), tokenString, h.jwtKey, h.blacklist)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	client, err := websocket.ServeUser(h.hub, claims.UserID, w, r, h.wsCfg)
	if err != nil {
		// The upgrader already wrote the failure response.
		return
	}

	// Seed the session with the current recipe list so the client renders
	// without waiting for the first mutation.
	snapshot, err := h.notifier.RecipeSnapshot(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("Failed to build recipe snapshot for user %d: %v", claims.UserID, err)
		return
	}
	client.Send(snapshot)
}
