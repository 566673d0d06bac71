package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRelay(t *testing.T) *Relay {
	t.Helper()
	relay := newTestRelay(t)
	connectAndJoin(t, relay, "c1", "alice")
	connectAndJoin(t, relay, "c2", "bob")
	relay.HandleEvent("c1", event(t, EventSendMessage, sendMessagePayload{Body: "hello"}))
	return relay
}

func getJSON(t *testing.T, handler http.HandlerFunc, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestMessagesHandlerReturnsRoomHistory(t *testing.T) {
	relay := seededRelay(t)

	var messages []Message
	rec := getJSON(t, MessagesHandler(relay), "/api/messages?room=general", &messages)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Body)
}

func TestMessagesHandlerDefaultsToGeneral(t *testing.T) {
	relay := seededRelay(t)

	var messages []Message
	rec := getJSON(t, MessagesHandler(relay), "/api/messages", &messages)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, messages, 1)
}

func TestMessagesHandlerUnknownRoom(t *testing.T) {
	relay := seededRelay(t)

	rec := getJSON(t, MessagesHandler(relay), "/api/messages?room=lobby", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsersHandler(t *testing.T) {
	relay := seededRelay(t)

	var users []Identity
	rec := getJSON(t, UsersHandler(relay), "/api/users", &users)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users, 2)

	names := []string{users[0].Username, users[1].Username}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)
}

func TestRoomsHandler(t *testing.T) {
	relay := seededRelay(t)

	var rooms []RoomSummary
	rec := getJSON(t, RoomsHandler(relay), "/api/rooms", &rooms)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rooms, 5)
	assert.Equal(t, "general", rooms[0].ID)
	assert.Equal(t, 2, rooms[0].UserCount)
	assert.Equal(t, 1, rooms[0].MessageCount)
}

func TestHealthHandler(t *testing.T) {
	relay := seededRelay(t)

	var health map[string]any
	rec := getJSON(t, HealthHandler(relay, time.Now().Add(-time.Minute)), "/health", &health)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", health["status"])
	assert.Equal(t, float64(2), health["connections"])
	assert.Equal(t, float64(5), health["rooms"])
	assert.GreaterOrEqual(t, health["uptime"].(float64), 59.0)
}

func TestIndexHandler(t *testing.T) {
	var banner map[string]any
	rec := getJSON(t, IndexHandler(), "/", &banner)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, banner, "endpoints")
}

func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	relay := newTestRelay(t)
	hub := NewHub(relay)

	req := httptest.NewRequest(http.MethodPost, "/ws", nil)
	rec := httptest.NewRecorder()
	WebSocketHandler(hub)(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebSocketHandlerRejectsPlainGet(t *testing.T) {
	relay := newTestRelay(t)
	hub := NewHub(relay)

	// No upgrade headers: the upgrader must refuse without panicking.
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	WebSocketHandler(hub)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
