// Package server exposes HTTP handlers: the WebSocket upgrade, the JSON
// read API over relay state, and the health check.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// writeJSON encodes v as the response body. Encoding failures after the
// header is written can only be logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// WebSocketHandler returns the handler that upgrades HTTP connections and
// registers them with the hub. The hub launches the pump goroutines.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		hub.register <- NewClient(conn, hub, r.RemoteAddr)
	}
}

// MessagesHandler serves the retained history window for one room.
func MessagesHandler(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			roomID = "general"
		}
		messages, err := relay.RoomMessages(roomID)
		if err != nil {
			if errors.Is(err, ErrUnknownRoom) {
				writeJSONError(w, http.StatusNotFound, "unknown room")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

// UsersHandler serves the online user list.
func UsersHandler(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, relay.OnlineUsers())
	}
}

// RoomsHandler serves the room directory with live counts.
func RoomsHandler(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, relay.Rooms())
	}
}

// HealthHandler reports service status, uptime, and live counts.
func HealthHandler(relay *Relay, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		connections, rooms := relay.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "OK",
			"timestamp":   time.Now().UTC(),
			"uptime":      time.Since(startedAt).Seconds(),
			"connections": connections,
			"rooms":       rooms,
		})
	}
}

// IndexHandler serves the service banner with the endpoint map.
func IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Chat relay server is running",
			"version": "1.0.0",
			"endpoints": map[string]string{
				"/api/messages": "Get messages for a room",
				"/api/users":    "Get online users",
				"/api/rooms":    "Get available rooms",
				"/api/upload":   "Upload files",
				"/health":       "Health check",
				"/ws":           "WebSocket endpoint",
			},
		})
	}
}
