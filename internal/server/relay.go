// Package server implements the session lifecycle controller: the relay
// that owns all chat state and turns inbound events into addressed outbound
// deliveries.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Delivery is one outbound event addressed to an explicit set of
// connections. Targets are resolved when the triggering event is handled;
// the transport performs the actual sends.
type Delivery struct {
	Targets []string
	Event   Envelope
}

// eventHandler processes one inbound event for a connection and returns the
// deliveries it produced. Handlers run with the relay write lock held.
type eventHandler func(r *Relay, connID string, data json.RawMessage) []Delivery

// eventHandlers is the dispatch table from inbound event name to handler.
var eventHandlers = map[string]eventHandler{
	EventUserJoin:         (*Relay).handleUserJoin,
	EventJoinRoom:         (*Relay).handleJoinRoom,
	EventSendMessage:      (*Relay).handleSendMessage,
	EventTyping:           (*Relay).handleTyping,
	EventPrivateMessage:   (*Relay).handlePrivateMessage,
	EventReactToMessage:   (*Relay).handleReact,
	EventMessageDelivered: (*Relay).handleDelivered,
}

// Relay is the session lifecycle controller. It owns the registry, room
// directory, typing tracker, and message router, and keeps them consistent
// across connect, join, room-switch, and disconnect.
//
// All state is guarded by one coarse lock: event handlers are serialized by
// the hub's event loop and take the write lock; the HTTP read surface takes
// the read lock. Relay instances are independent, so tests run one per case.
type Relay struct {
	mu          sync.RWMutex
	registry    *Registry
	rooms       *Directory
	typing      *Tracker
	router      *Router
	defaultRoom string
}

// NewRelay builds a relay over the given static room set. The default room
// is the first room in defs; every joining connection lands there.
func NewRelay(defs []RoomDef) (*Relay, error) {
	rooms, err := NewDirectory(defs)
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	return &Relay{
		registry:    registry,
		rooms:       rooms,
		typing:      NewTracker(),
		router:      NewRouter(registry, rooms),
		defaultRoom: defs[0].ID,
	}, nil
}

// Connect registers a fresh connection id. The connection has no display
// name and no room until its join event arrives.
func (r *Relay) Connect(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.registry.Register(connID)
	return err
}

// HandleEvent dispatches one inbound event. Unknown events and events from
// unregistered connections are dropped, never fatal: a disconnect may race
// an in-flight event, and old clients may send event names this server does
// not implement.
func (r *Relay) HandleEvent(connID string, env Envelope) []Delivery {
	handler, ok := eventHandlers[env.Event]
	if !ok {
		log.Printf("Dropping unknown event %q from %s", env.Event, connID)
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return handler(r, connID, env.Data)
}

// Disconnect is the single cleanup path: membership, typing intent, and the
// identity are removed together, then the vacated room and the remaining
// population are notified. A connection id the registry no longer knows has
// already been cleaned up; repeating it is a no-op with no broadcast.
func (r *Relay) Disconnect(connID string) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.registry.Get(connID)
	if !ok {
		return nil
	}

	var out []Delivery
	if id.CurrentRoom != "" && r.rooms.Has(id.CurrentRoom) {
		_ = r.rooms.RemoveMember(id.CurrentRoom, connID)
		notice := RoomNotice{Username: id.Username, ID: connID, Room: id.CurrentRoom}
		out = r.appendDelivery(out, r.roomMembers(id.CurrentRoom), EventUserLeft, notice)
	}
	r.typing.Remove(connID)
	r.registry.Remove(connID)
	return r.appendDelivery(out, r.registry.ConnIDs(), EventUserList, r.registry.Snapshot())
}

func (r *Relay) handleUserJoin(connID string, data json.RawMessage) []Delivery {
	var name string
	if err := json.Unmarshal(data, &name); err != nil || name == "" {
		log.Printf("Dropping user_join from %s: missing display name", connID)
		return nil
	}
	id, ok := r.registry.Get(connID)
	if !ok {
		return nil
	}
	if id.Username != "" {
		// Already joined; a repeat join must not duplicate membership.
		log.Printf("Dropping repeat user_join from %s", connID)
		return nil
	}
	_ = r.registry.SetName(connID, name)
	_ = r.registry.SetRoom(connID, r.defaultRoom)
	_ = r.rooms.AddMember(r.defaultRoom, connID)

	var out []Delivery
	out = r.appendDelivery(out, r.registry.ConnIDs(), EventUserList, r.registry.Snapshot())
	notice := RoomNotice{Username: name, ID: connID, Room: r.defaultRoom}
	out = r.appendDelivery(out, r.roomMembers(r.defaultRoom), EventUserJoined, notice)
	log.Printf("%s joined the chat as %s", connID, name)
	return out
}

// handleJoinRoom performs the room-switch transition. The ordering matters:
// the old room is vacated before the new one is entered, so the connection
// is never a member of two rooms, and the history snapshot is delivered
// before the new room's join notice.
func (r *Relay) handleJoinRoom(connID string, data json.RawMessage) []Delivery {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		return nil
	}
	id, ok := r.registry.Get(connID)
	if !ok || id.Username == "" || !r.rooms.Has(roomID) {
		return nil
	}

	var out []Delivery
	if old := id.CurrentRoom; old != "" && r.rooms.Has(old) {
		_ = r.rooms.RemoveMember(old, connID)
		r.typing.Remove(connID)
		notice := RoomNotice{Username: id.Username, Room: old}
		out = r.appendDelivery(out, r.roomMembers(old), EventUserLeftRoom, notice)
	}

	_ = r.rooms.AddMember(roomID, connID)
	_ = r.registry.SetRoom(connID, roomID)

	snapshot, _ := r.rooms.RecentMessages(roomID, defaultSnapshotLimit)
	out = r.appendDelivery(out, []string{connID}, EventRoomMessages, snapshot)
	notice := RoomNotice{Username: id.Username, Room: roomID}
	out = r.appendDelivery(out, r.roomMembers(roomID), EventUserJoinedRoom, notice)
	log.Printf("%s joined room %s", id.Username, roomID)
	return out
}

func (r *Relay) handleSendMessage(connID string, data json.RawMessage) []Delivery {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Dropping malformed send_message from %s: %v", connID, err)
		return nil
	}
	msg, err := r.router.PostRoomMessage(connID, payload.Body)
	if err != nil {
		if !errors.Is(err, ErrNotRegistered) {
			log.Printf("send_message from %s rejected: %v", connID, err)
		}
		return nil
	}
	// Sending a message ends the typing intent.
	r.typing.Remove(connID)
	return r.appendDelivery(nil, r.roomMembers(msg.Room), EventReceiveMessage, msg)
}

func (r *Relay) handleTyping(connID string, data json.RawMessage) []Delivery {
	var isTyping bool
	if err := json.Unmarshal(data, &isTyping); err != nil {
		return nil
	}
	id, ok := r.registry.Get(connID)
	if !ok || id.CurrentRoom == "" {
		return nil
	}
	r.typing.SetTyping(connID, isTyping)
	names := r.typing.TypingInRoom(r.registry, id.CurrentRoom)
	return r.appendDelivery(nil, r.roomMembers(id.CurrentRoom), EventTypingUsers, names)
}

func (r *Relay) handlePrivateMessage(connID string, data json.RawMessage) []Delivery {
	var payload privateMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	msg, err := r.router.PostPrivateMessage(connID, payload.To, payload.Body)
	if err != nil {
		// Best-effort policy: an unreachable recipient drops the whole
		// message with no sender echo and no error.
		return nil
	}
	targets := []string{connID}
	if payload.To != connID {
		targets = append(targets, payload.To)
	}
	return r.appendDelivery(nil, targets, EventPrivateMessage, msg)
}

func (r *Relay) handleReact(connID string, data json.RawMessage) []Delivery {
	var payload reactPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	reaction, err := r.router.React(connID, payload.MessageID, payload.Reaction, payload.RoomName)
	if err != nil {
		return nil
	}
	return r.appendDelivery(nil, r.roomMembers(payload.RoomName), EventMessageReaction, reaction)
}

func (r *Relay) handleDelivered(connID string, data json.RawMessage) []Delivery {
	var payload deliveredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	ack, err := r.router.Acknowledge(connID, payload.MessageID, payload.RoomName)
	if err != nil {
		return nil
	}
	targets := exclude(r.roomMembers(payload.RoomName), connID)
	return r.appendDelivery(nil, targets, EventMessageAcknowledged, ack)
}

// roomMembers returns the member snapshot for fan-out; the room is always
// pre-validated by the caller.
func (r *Relay) roomMembers(roomID string) []string {
	members, err := r.rooms.Members(roomID)
	if err != nil {
		return nil
	}
	return members
}

// appendDelivery marshals payload into an envelope and appends the delivery
// unless there is nobody to send it to.
func (r *Relay) appendDelivery(out []Delivery, targets []string, event string, payload any) []Delivery {
	if len(targets) == 0 {
		return out
	}
	env, err := NewEnvelope(event, payload)
	if err != nil {
		log.Printf("Dropping %s delivery: %v", event, err)
		return out
	}
	return append(out, Delivery{Targets: targets, Event: env})
}

func exclude(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// Read-side queries for the HTTP surface. These take the read lock and
// return copies, so handler goroutines never observe partial updates.

// RoomMessages returns the full retained history window for roomID.
func (r *Relay) RoomMessages(roomID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms.RecentMessages(roomID, historyLimit)
}

// OnlineUsers returns every joined identity, ordered by join time.
func (r *Relay) OnlineUsers() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registry.Snapshot()
}

// Rooms returns the directory listing with live member and message counts.
func (r *Relay) Rooms() []RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms.ListRooms()
}

// TypingUsers returns the display names currently typing in roomID.
func (r *Relay) TypingUsers(roomID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.rooms.Has(roomID) {
		return nil, fmt.Errorf("typing users %q: %w", roomID, ErrUnknownRoom)
	}
	return r.typing.TypingInRoom(r.registry, roomID), nil
}

// Stats reports the counts surfaced by the health endpoint.
func (r *Relay) Stats() (connections, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.registry.Snapshot()), len(r.rooms.ListRooms())
}
