// Package server derives typing presence from the typing-intent set and the
// connection registry.
package server

import "sort"

// Tracker holds the typing-intent set: connection ids that are actively
// composing. An entry is deleted, never set false, on stop-typing, on
// message send, and on disconnect. No internal locking; the relay
// serializes access.
type Tracker struct {
	typing map[string]struct{}
}

// NewTracker returns an empty typing tracker.
func NewTracker() *Tracker {
	return &Tracker{typing: make(map[string]struct{})}
}

// SetTyping records or clears the typing intent for connID.
func (t *Tracker) SetTyping(connID string, isTyping bool) {
	if isTyping {
		t.typing[connID] = struct{}{}
		return
	}
	delete(t.typing, connID)
}

// Remove drops connID's intent entry, if any. Called on disconnect and on
// message send.
func (t *Tracker) Remove(connID string) {
	delete(t.typing, connID)
}

// IsTyping reports whether connID currently has a typing intent.
func (t *Tracker) IsTyping(connID string) bool {
	_, ok := t.typing[connID]
	return ok
}

// TypingInRoom intersects the intent set with the registry's room
// assignments and returns the display names typing in roomID, sorted for a
// stable wire order. Filtering out the viewer's own name is a client
// concern.
func (t *Tracker) TypingInRoom(reg *Registry, roomID string) []string {
	names := make([]string, 0, len(t.typing))
	for connID := range t.typing {
		id, ok := reg.Get(connID)
		if !ok || id.CurrentRoom != roomID {
			continue
		}
		names = append(names, id.Username)
	}
	sort.Strings(names)
	return names
}
