package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	roomRepo "github.com/vidroom/server/internal/repository/room"
	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/wsrouter"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// writeLock returns the write mutex for conn, creating it on first use.
func (c *controller) writeLock(conn *websocket.Conn) *sync.Mutex {
	c.writeLocksMu.Lock()
	defer c.writeLocksMu.Unlock()

	mu, ok := c.writeLocks[conn]
	if !ok {
		mu = &sync.Mutex{}
		c.writeLocks[conn] = mu
	}

	return mu
}

func (c *controller) dropWriteLock(conn *websocket.Conn) {
	c.writeLocksMu.Lock()
	defer c.writeLocksMu.Unlock()

	delete(c.writeLocks, conn)
}

func (c *controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) error {
	if conn == nil {
		return nil
	}

	mu := c.writeLock(conn)
	mu.Lock()
	err := conn.WriteJSON(output)
	mu.Unlock()

	if err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "type", output.Type, "error", err)
		return err
	}

	return nil
}

// broadcast fans an event out to every given connection. A dead connection
// is skipped; its own read loop handles the disconnect.
func (c *controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) {
	for _, conn := range conns {
		// writeToConn already logs the failure
		_ = c.writeToConn(ctx, conn, output)
	}
}

func (c *controller) writeError(ctx context.Context, conn *websocket.Conn, message string) {
	if err := c.writeToConn(ctx, conn, &Output{Type: "error", Payload: message}); err != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", err)
	}
}

// handleWSError turns a handler error into an error event for the sender
// only. Rejections never reach the rest of the room.
func (c *controller) handleWSError(ctx context.Context, conn *websocket.Conn, messageType string, err error) {
	c.logger.InfoContext(ctx, "ws handler error", "type", messageType, "error", err)
	c.writeError(ctx, conn, userMessage(err))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, roomRepo.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, roomRepo.ErrRoomFull):
		return "room is full"
	case errors.Is(err, roomRepo.ErrAlreadyInRoom):
		return "you are already in a room"
	case errors.Is(err, room.ErrNotLeader):
		return "only the room leader can do that"
	case errors.Is(err, room.ErrTargetNotInRoom):
		return "that user is not in the room"
	case errors.Is(err, room.ErrInvalidMessage):
		return "Message could not be sent. Invalid room or user not in room."
	case errors.Is(err, room.ErrInvalidPlaybackRate):
		return "unsupported playback rate"
	case errors.Is(err, room.ErrSyncTimeout):
		return "initial sync timed out, try again"
	case errors.Is(err, room.ErrSyncUnavailable):
		return "initial sync unavailable"
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		return "unknown message type"
	default:
		return "something went wrong"
	}
}
