// Package server defines the wire envelope and event payload types exchanged
// with chat clients over the WebSocket transport.
package server

import (
	"encoding/json"
	"time"
)

// Inbound event names accepted from clients.
const (
	EventUserJoin         = "user_join"
	EventJoinRoom         = "join_room"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
	EventPrivateMessage   = "private_message"
	EventReactToMessage   = "react_to_message"
	EventMessageDelivered = "message_delivered"
)

// Outbound event names emitted to clients.
const (
	EventUserList            = "user_list"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventUserJoinedRoom      = "user_joined_room"
	EventUserLeftRoom        = "user_left_room"
	EventRoomMessages        = "room_messages"
	EventReceiveMessage      = "receive_message"
	EventTypingUsers         = "typing_users"
	EventMessageReaction     = "message_reaction"
	EventMessageAcknowledged = "message_acknowledged"
)

// Envelope is the framing for every client/server frame: an event name plus
// an event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. Marshal errors are
// programming errors (all payload types here are plain structs), so they are
// returned for the caller to log and drop.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// Identity describes one live connection as seen by clients.
type Identity struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	CurrentRoom string    `json:"currentRoom"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Message is a chat message, stamped by the server at receipt. Room messages
// carry Room; private messages carry To and IsPrivate instead.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room,omitempty"`
	IsPrivate bool      `json:"isPrivate,omitempty"`
	To        string    `json:"to,omitempty"`
}

// Reaction is a broadcast notification that a user reacted to a message. It
// references the message by id only; stored history is never mutated.
type Reaction struct {
	MessageID string    `json:"messageId"`
	Reaction  string    `json:"reaction"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Acknowledgment notifies a room that a member received a message.
type Acknowledgment struct {
	MessageID      string    `json:"messageId"`
	AcknowledgedBy string    `json:"acknowledgedBy"`
	Timestamp      time.Time `json:"timestamp"`
}

// RoomNotice announces a membership change to a room or to everyone.
type RoomNotice struct {
	Username string `json:"username"`
	ID       string `json:"id,omitempty"`
	Room     string `json:"room"`
}

// Inbound payload shapes.

type sendMessagePayload struct {
	Body string `json:"message"`
}

type privateMessagePayload struct {
	To   string `json:"to"`
	Body string `json:"message"`
}

type reactPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	RoomName  string `json:"roomName"`
}

type deliveredPayload struct {
	MessageID string `json:"messageId"`
	RoomName  string `json:"roomName"`
}
