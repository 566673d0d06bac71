// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Client is one WebSocket connection. The connection id is assigned at
// upgrade time and identifies the client in the relay until disconnect; ids
// are never reused while a connection is alive.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a Client for an upgraded connection. The send channel is
// buffered so slow readers are detected (and evicted) instead of blocking
// the hub.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the connection id assigned at upgrade time.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs the error and reports whether the read loop should
// stop. Every error ends the loop; the cases only differ in logging.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Frame from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.addr, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.addr, err)
	}
	return true
}

// processFrame decodes an envelope and queues it for the relay. Malformed
// frames are logged and dropped without terminating the connection.
func (c *Client) processFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Invalid frame from %s: %v", c.addr, err)
		return
	}
	if env.Event == "" {
		log.Printf("Frame from %s missing event name", c.addr)
		return
	}
	select {
	case c.hub.inbound <- inboundEvent{connID: c.id, envelope: env}:
	case <-c.hub.ctx.Done():
	}
}

func (c *Client) readPump() {
	defer func() {
		// During shutdown the hub's loop is gone; don't block on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if c.rateLimiter != nil && !c.rateLimiter.allow() {
			log.Printf("Rate limit exceeded for %s (%d frames per %s); discarding frame",
				c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
			continue
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in writePump: %v", err)
			}
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				// Hub closed the send channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					if !isExpectedCloseError(err) {
						log.Printf("Error writing close message to %s: %v", c.addr, err)
					}
				}
				return
			}
			// One envelope per frame; clients decode each frame as a
			// single JSON document.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing message to %s: %v", c.addr, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Error writing ping message to %s: %v", c.addr, err)
				return
			}

		case <-c.hub.ctx.Done():
			return
		}
	}
}
