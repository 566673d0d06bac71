// Package server coordinates client registration, relay dispatch, and
// delivery fan-out for the WebSocket transport via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// inboundEvent is one decoded client frame queued for the relay.
type inboundEvent struct {
	connID   string
	envelope Envelope
}

// Hub owns the live client set and the single event loop that feeds the
// relay. Serializing every inbound event through Run gives the relay
// handler-level atomicity; the mutex only protects the client map from the
// send path and shutdown.
type Hub struct {
	relay      *Relay
	clients    map[string]*Client
	inbound    chan inboundEvent
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub bound to the given relay. The returned hub is ready
// once Run is started in its own goroutine.
func NewHub(relay *Relay) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		relay:      relay,
		clients:    make(map[string]*Client),
		inbound:    make(chan inboundEvent),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Relay exposes the relay for the HTTP read surface.
func (h *Hub) Relay() *Relay {
	return h.relay
}

// Run is the hub's event loop: client registration, unregistration, and
// relay dispatch all happen here, one event at a time. Call it in a
// dedicated goroutine; it returns only on shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.dropClient(client)

		case evt := <-h.inbound:
			h.deliver(h.relay.HandleEvent(evt.connID, evt.envelope))
		}
	}
}

func (h *Hub) addClient(client *Client) {
	if client == nil {
		log.Printf("Received nil client registration; skipping")
		return
	}
	if err := h.relay.Connect(client.id); err != nil {
		log.Printf("Rejecting client %s from %s: %v", client.id, client.addr, err)
		if client.conn != nil {
			_ = client.conn.Close()
		}
		return
	}

	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("Client %s connected from %s. Total clients: %d", client.id, client.addr, clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) dropClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	log.Printf("Client %s disconnected from %s. Total clients: %d", client.id, client.addr, clientCount)

	h.deliver(h.relay.Disconnect(client.id))
}

// deliver fans each delivery out to its resolved targets. A recipient whose
// send buffer is full or whose connection died is evicted; it never stalls
// or aborts delivery to the rest.
func (h *Hub) deliver(deliveries []Delivery) {
	for _, d := range deliveries {
		payload, err := json.Marshal(d.Event)
		if err != nil {
			log.Printf("Error encoding %s event: %v", d.Event.Event, err)
			continue
		}

		var failed []*Client
		for _, connID := range d.Targets {
			h.mutex.RLock()
			client, ok := h.clients[connID]
			h.mutex.RUnlock()
			if !ok {
				continue
			}
			if !h.safeSend(client, payload) {
				failed = append(failed, client)
			}
		}
		h.removeFailedClients(failed)
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the send so unregistration cannot close the
	// channel mid-send.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients evicts clients that failed to receive a delivery,
// closes their send channels, and runs the relay's disconnect cleanup for
// each so room state never references a dead connection.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	var dropped []string
	for _, client := range failed {
		if _, exists := h.clients[client.id]; exists {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			dropped = append(dropped, client.id)
			log.Printf("Client %s from %s removed due to full send buffer", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock.
	for _, ch := range channelsToClose {
		close(ch)
	}
	for _, connID := range dropped {
		h.deliver(h.relay.Disconnect(connID))
	}
}

// shutdownClients closes every active client connection.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown signals the event loop to stop, closes all connections, and
// waits for the pump goroutines to finish or the timeout to expire.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
