// Package server implements a room-based chat relay: a WebSocket transport
// (hub and per-client pumps) feeding a session relay that owns connection
// identities, static rooms with bounded history, typing presence, and
// message routing, plus a small JSON read API over the same state.
//
// The implementation is organized into specialized files for configuration,
// the relay core and its components, hub and client transport, routing, and
// HTTP handlers to keep the codebase maintainable and testable as the
// project grows.
package server
