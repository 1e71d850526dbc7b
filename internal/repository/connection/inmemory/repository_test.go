package inmemory

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidroom/server/internal/repository/connection"
)

func TestAddAndLookup(t *testing.T) {
	repo := NewRepo()
	conn := &websocket.Conn{}

	require.NoError(t, repo.Add(conn, "conn-1"))
	assert.ErrorIs(t, repo.Add(conn, "conn-2"), connection.ErrAlreadyExists)
	assert.ErrorIs(t, repo.Add(&websocket.Conn{}, "conn-1"), connection.ErrAlreadyExists)

	got, err := repo.GetConn("conn-1")
	require.NoError(t, err)
	assert.Same(t, conn, got)

	connectionId, err := repo.GetConnectionId(conn)
	require.NoError(t, err)
	assert.Equal(t, "conn-1", connectionId)

	_, err = repo.GetConn("conn-9")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = repo.GetConnectionId(&websocket.Conn{})
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestUsernames(t *testing.T) {
	repo := NewRepo()

	// a name needs a live connection to attach to
	assert.ErrorIs(t, repo.SetUsername("conn-1", "alice"), connection.ErrNotFound)

	require.NoError(t, repo.Add(&websocket.Conn{}, "conn-1"))
	require.NoError(t, repo.SetUsername("conn-1", "alice"))

	username, err := repo.GetUsername("conn-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestRemoveByConnectionId(t *testing.T) {
	repo := NewRepo()
	conn := &websocket.Conn{}

	assert.ErrorIs(t, repo.RemoveByConnectionId("conn-1"), connection.ErrNotFound)

	require.NoError(t, repo.Add(conn, "conn-1"))
	require.NoError(t, repo.SetUsername("conn-1", "alice"))
	require.NoError(t, repo.RemoveByConnectionId("conn-1"))

	_, err := repo.GetConn("conn-1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = repo.GetConnectionId(conn)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = repo.GetUsername("conn-1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
}
