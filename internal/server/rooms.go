// Package server owns the static room directory: per-room bounded message
// history and membership sets.
package server

import (
	"errors"
	"fmt"
)

// ErrUnknownRoom is returned for any operation that references a room id
// outside the static set.
var ErrUnknownRoom = errors.New("unknown room")

const (
	// historyLimit bounds the retained message window per room; the oldest
	// message is evicted first once the bound is exceeded.
	historyLimit = 200
	// defaultSnapshotLimit is how many recent messages a joining client
	// receives when it does not ask for a specific count.
	defaultSnapshotLimit = 50
)

// RoomDef names one room of the static set.
type RoomDef struct {
	ID   string
	Name string
}

// DefaultRooms is the room set of the stock deployment.
func DefaultRooms() []RoomDef {
	return []RoomDef{
		{ID: "general", Name: "General"},
		{ID: "random", Name: "Random"},
		{ID: "tech", Name: "Tech Talk"},
		{ID: "music", Name: "Music"},
		{ID: "games", Name: "Games"},
	}
}

type room struct {
	id      string
	name    string
	history []Message
	members map[string]struct{}
}

// RoomSummary is the directory listing entry for one room.
type RoomSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	UserCount    int    `json:"userCount"`
	MessageCount int    `json:"messageCount"`
}

// Directory holds the fixed set of rooms created at process start. The set
// itself never changes at runtime. No internal locking; the relay
// serializes access.
type Directory struct {
	rooms map[string]*room
	order []string
}

// NewDirectory builds the directory from defs. Duplicate or empty room ids
// are a configuration fault and fail construction.
func NewDirectory(defs []RoomDef) (*Directory, error) {
	if len(defs) == 0 {
		return nil, errors.New("room directory: no rooms configured")
	}
	d := &Directory{rooms: make(map[string]*room, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return nil, errors.New("room directory: empty room id")
		}
		if _, dup := d.rooms[def.ID]; dup {
			return nil, fmt.Errorf("room directory: duplicate room id %q", def.ID)
		}
		d.rooms[def.ID] = &room{
			id:      def.ID,
			name:    def.Name,
			members: make(map[string]struct{}),
		}
		d.order = append(d.order, def.ID)
	}
	return d, nil
}

// Has reports whether roomID belongs to the static set.
func (d *Directory) Has(roomID string) bool {
	_, ok := d.rooms[roomID]
	return ok
}

// AddMember adds connID to the room. Adding an existing member is a no-op.
func (d *Directory) AddMember(roomID, connID string) error {
	rm, ok := d.rooms[roomID]
	if !ok {
		return fmt.Errorf("add member %q: %w", roomID, ErrUnknownRoom)
	}
	rm.members[connID] = struct{}{}
	return nil
}

// RemoveMember removes connID from the room. Removing a non-member is a no-op.
func (d *Directory) RemoveMember(roomID, connID string) error {
	rm, ok := d.rooms[roomID]
	if !ok {
		return fmt.Errorf("remove member %q: %w", roomID, ErrUnknownRoom)
	}
	delete(rm.members, connID)
	return nil
}

// Members returns the connection ids currently in the room.
func (d *Directory) Members(roomID string) ([]string, error) {
	rm, ok := d.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("members %q: %w", roomID, ErrUnknownRoom)
	}
	out := make([]string, 0, len(rm.members))
	for connID := range rm.members {
		out = append(out, connID)
	}
	return out, nil
}

// MemberCount returns the size of the room's membership set.
func (d *Directory) MemberCount(roomID string) (int, error) {
	rm, ok := d.rooms[roomID]
	if !ok {
		return 0, fmt.Errorf("member count %q: %w", roomID, ErrUnknownRoom)
	}
	return len(rm.members), nil
}

// AppendMessage appends msg to the room history, evicting the oldest entry
// once the retained window exceeds historyLimit.
func (d *Directory) AppendMessage(roomID string, msg Message) error {
	rm, ok := d.rooms[roomID]
	if !ok {
		return fmt.Errorf("append message %q: %w", roomID, ErrUnknownRoom)
	}
	rm.history = append(rm.history, msg)
	if len(rm.history) > historyLimit {
		overflow := len(rm.history) - historyLimit
		rm.history = append(rm.history[:0:0], rm.history[overflow:]...)
	}
	return nil
}

// RecentMessages returns the last limit messages in chronological order.
// A non-positive limit selects the default snapshot size.
func (d *Directory) RecentMessages(roomID string, limit int) ([]Message, error) {
	rm, ok := d.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("recent messages %q: %w", roomID, ErrUnknownRoom)
	}
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	start := len(rm.history) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(rm.history)-start)
	copy(out, rm.history[start:])
	return out, nil
}

// ListRooms returns a summary for every room in configuration order.
func (d *Directory) ListRooms() []RoomSummary {
	out := make([]RoomSummary, 0, len(d.order))
	for _, id := range d.order {
		rm := d.rooms[id]
		out = append(out, RoomSummary{
			ID:           rm.id,
			Name:         rm.name,
			UserCount:    len(rm.members),
			MessageCount: len(rm.history),
		})
	}
	return out
}
