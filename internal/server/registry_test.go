package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	id, err := reg.Register("conn-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", id.ID)
	assert.Empty(t, id.Username)
	assert.Empty(t, id.CurrentRoom)
	assert.False(t, id.JoinedAt.IsZero())

	got, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register("conn-1")
	require.NoError(t, err)

	_, err = reg.Register("conn-1")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistrySetNameAndRoom(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("conn-1")
	require.NoError(t, err)

	require.NoError(t, reg.SetName("conn-1", "alice"))
	require.NoError(t, reg.SetRoom("conn-1", "tech"))

	id, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "tech", id.CurrentRoom)

	assert.ErrorIs(t, reg.SetName("ghost", "x"), ErrNotRegistered)
	assert.ErrorIs(t, reg.SetRoom("ghost", "tech"), ErrNotRegistered)
}

func TestRegistryRemoveIsFinal(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("conn-1")
	require.NoError(t, err)

	reg.Remove("conn-1")
	_, ok := reg.Get("conn-1")
	assert.False(t, ok)
	assert.ErrorIs(t, reg.SetName("conn-1", "alice"), ErrNotRegistered)

	// Removing twice is harmless.
	reg.Remove("conn-1")
}

func TestRegistrySnapshotListsJoinedIdentitiesInJoinOrder(t *testing.T) {
	reg := NewRegistry()

	for _, connID := range []string{"a", "b", "c"} {
		_, err := reg.Register(connID)
		require.NoError(t, err)
	}
	// Force distinct join times so ordering is observable.
	base := time.Now().UTC()
	for i, connID := range []string{"c", "a"} {
		id, ok := reg.Get(connID)
		require.True(t, ok)
		id.JoinedAt = base.Add(time.Duration(i) * time.Second)
	}
	require.NoError(t, reg.SetName("c", "carol"))
	require.NoError(t, reg.SetName("a", "alice"))
	// "b" never joined; it must not appear in the snapshot.

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "carol", snapshot[0].Username)
	assert.Equal(t, "alice", snapshot[1].Username)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, reg.ConnIDs())
}
