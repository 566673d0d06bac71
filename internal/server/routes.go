// Package server wires HTTP handlers into a ServeMux for the relay
// application via routing helpers.
package server

import (
	"net/http"
	"time"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the service banner, health check, read API, upload endpoint,
// static upload serving, and the WebSocket endpoint.
func SetupRoutes(hub *Hub) *http.ServeMux {
	cfg := currentConfig()
	relay := hub.Relay()
	startedAt := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", IndexHandler())
	mux.HandleFunc("GET /health", HealthHandler(relay, startedAt))
	mux.HandleFunc("GET /api/messages", MessagesHandler(relay))
	mux.HandleFunc("GET /api/users", UsersHandler(relay))
	mux.HandleFunc("GET /api/rooms", RoomsHandler(relay))
	mux.HandleFunc("POST /api/upload", UploadHandler(cfg.UploadDir, cfg.MaxUploadSize))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	return mux
}
