// Package server tracks the identity of every live connection in the
// connection registry.
package server

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrAlreadyRegistered is returned when a connection id is registered twice.
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrNotRegistered is returned when an operation references a connection
	// id with no live identity.
	ErrNotRegistered = errors.New("connection not registered")
)

// Registry maps each live connection id to its identity. It performs no
// locking of its own; the relay serializes access.
type Registry struct {
	identities map[string]*Identity
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{identities: make(map[string]*Identity)}
}

// Register creates an identity for a new connection. The display name is
// empty until the join event supplies one.
func (r *Registry) Register(connID string) (*Identity, error) {
	if _, ok := r.identities[connID]; ok {
		return nil, ErrAlreadyRegistered
	}
	id := &Identity{ID: connID, JoinedAt: time.Now().UTC()}
	r.identities[connID] = id
	return id, nil
}

// SetName records the display name supplied at join time.
func (r *Registry) SetName(connID, name string) error {
	id, ok := r.identities[connID]
	if !ok {
		return ErrNotRegistered
	}
	id.Username = name
	return nil
}

// SetRoom records the connection's current room.
func (r *Registry) SetRoom(connID, roomID string) error {
	id, ok := r.identities[connID]
	if !ok {
		return ErrNotRegistered
	}
	id.CurrentRoom = roomID
	return nil
}

// Get returns the identity for connID, or false if none is registered.
func (r *Registry) Get(connID string) (*Identity, bool) {
	id, ok := r.identities[connID]
	return id, ok
}

// Remove deletes the identity. Removing an unknown id is a no-op.
func (r *Registry) Remove(connID string) {
	delete(r.identities, connID)
}

// ConnIDs returns the ids of every live connection, joined or not.
func (r *Registry) ConnIDs() []string {
	ids := make([]string, 0, len(r.identities))
	for connID := range r.identities {
		ids = append(ids, connID)
	}
	return ids
}

// Snapshot returns the identities that completed a join (a display name is
// set), ordered by join time for stable user lists.
func (r *Registry) Snapshot() []Identity {
	out := make([]Identity, 0, len(r.identities))
	for _, id := range r.identities {
		if id.Username == "" {
			continue
		}
		out = append(out, *id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}
