// Package server stamps and addresses every message-class event through the
// message router.
package server

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRecipientUnreachable marks a private message whose target is not
// currently connected. The relay swallows it: best-effort policy, no error
// is surfaced to the sender and nothing is queued.
var ErrRecipientUnreachable = fmt.Errorf("recipient unreachable")

// Router validates inbound message events, stamps them with a server
// timestamp and a collision-resistant id, and appends room messages to
// history. Addressing decisions (who receives what) are returned to the
// relay, which owns fan-out.
type Router struct {
	registry *Registry
	rooms    *Directory
	now      func() time.Time
	newID    func() string
}

// NewRouter wires the router to the shared registry and room directory.
func NewRouter(registry *Registry, rooms *Directory) *Router {
	return &Router{
		registry: registry,
		rooms:    rooms,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// PostRoomMessage builds, stores, and returns the stamped message for the
// sender's current room. The returned message is broadcast to every room
// member, sender included; the sender's UI reconciles by id.
func (rt *Router) PostRoomMessage(connID, body string) (Message, error) {
	sender, ok := rt.registry.Get(connID)
	if !ok {
		return Message{}, ErrNotRegistered
	}
	roomID := sender.CurrentRoom
	if roomID == "" {
		return Message{}, fmt.Errorf("post message: sender has no room: %w", ErrNotRegistered)
	}
	msg := Message{
		ID:        rt.newID(),
		Sender:    sender.Username,
		SenderID:  sender.ID,
		Body:      body,
		Timestamp: rt.now(),
		Room:      roomID,
	}
	if err := rt.rooms.AppendMessage(roomID, msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// PostPrivateMessage builds the stamped private message for delivery to
// exactly the sender and the recipient. Private messages carry no room and
// are never appended to history. A sender that has not completed its join
// has no display name yet and is rejected.
func (rt *Router) PostPrivateMessage(fromConnID, toConnID, body string) (Message, error) {
	sender, ok := rt.registry.Get(fromConnID)
	if !ok || sender.Username == "" {
		return Message{}, ErrNotRegistered
	}
	if _, ok := rt.registry.Get(toConnID); !ok {
		return Message{}, ErrRecipientUnreachable
	}
	return Message{
		ID:        rt.newID(),
		Sender:    sender.Username,
		SenderID:  sender.ID,
		Body:      body,
		Timestamp: rt.now(),
		IsPrivate: true,
		To:        toConnID,
	}, nil
}

// React builds the reaction notification for broadcast to the room. The
// message id is deliberately not checked against history: reactions are
// symmetric notifications, not mutations of stored messages.
func (rt *Router) React(connID, messageID, reaction, roomID string) (Reaction, error) {
	user, ok := rt.registry.Get(connID)
	if !ok || user.Username == "" {
		return Reaction{}, ErrNotRegistered
	}
	if !rt.rooms.Has(roomID) {
		return Reaction{}, fmt.Errorf("react in %q: %w", roomID, ErrUnknownRoom)
	}
	return Reaction{
		MessageID: messageID,
		Reaction:  reaction,
		Username:  user.Username,
		Timestamp: rt.now(),
	}, nil
}

// Acknowledge builds the delivery notification for broadcast to the room,
// excluding the acknowledger. Each ack is an independent event; there is no
// seen-by aggregation.
func (rt *Router) Acknowledge(connID, messageID, roomID string) (Acknowledgment, error) {
	user, ok := rt.registry.Get(connID)
	if !ok || user.Username == "" {
		return Acknowledgment{}, ErrNotRegistered
	}
	if !rt.rooms.Has(roomID) {
		return Acknowledgment{}, fmt.Errorf("acknowledge in %q: %w", roomID, ErrUnknownRoom)
	}
	return Acknowledgment{
		MessageID:      messageID,
		AcknowledgedBy: user.Username,
		Timestamp:      rt.now(),
	}, nil
}
