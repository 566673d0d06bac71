package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/openchat-labs/relayd/internal/server"
)

func main() {
	log.Println("Starting chat relay server...")

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	server.SetConfig(cfg)

	if err := server.EnsureUploadDir(cfg.UploadDir); err != nil {
		log.Fatalf("Upload directory unavailable: %v", err)
	}

	relay, err := server.NewRelay(server.DefaultRooms())
	if err != nil {
		log.Fatalf("Invalid room configuration: %v", err)
	}

	hub := server.NewHub(relay)
	go hub.Run()

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("%s received, shutting down gracefully", sig)
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Hub shutdown did not complete cleanly: %v", err)
	}
}
