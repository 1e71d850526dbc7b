package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/ctxlogger"
)

func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	// the session id is the client's durable per-tab identity; a client
	// that reconnects presents the same one and gets a fresh connection id
	sessionId := r.URL.Query().Get("session-id")
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	connectionId := uuid.NewString()

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	ctx := context.WithValue(r.Context(), connectionIdCtxKey, connectionId)
	ctx = context.WithValue(ctx, sessionIdCtxKey, sessionId)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("connection_id", connectionId))

	if err := c.roomService.Connect(ctx, &room.ConnectParams{
		Conn:         conn,
		ConnectionId: connectionId,
		SessionId:    sessionId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to connect", "error", err)
		conn.Close()
		return
	}
	defer c.dropWriteLock(conn)
	defer c.disconnect(ctx, connectionId, sessionId)

	if err := c.writeToConn(ctx, conn, &Output{
		Type:    "on-connection",
		Payload: connectionId,
	}); err != nil {
		return
	}

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

// disconnect runs after the read loop ends for any reason. It performs the
// same room-leave sequence an explicit leave does, then purges every
// per-connection record.
func (c *controller) disconnect(ctx context.Context, connectionId, sessionId string) {
	resp, err := c.roomService.Disconnect(ctx, &room.DisconnectParams{
		ConnectionId: connectionId,
		SessionId:    sessionId,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect", "error", err)
		return
	}

	if !resp.WasInRoom || resp.Left.Deleted {
		return
	}

	c.broadcastLeft(ctx, resp.RoomId, &resp.Left)
}

// broadcastLeft emits the post-leave sequence: updated users list, the
// user-left notice, then the leadership change if one happened.
func (c *controller) broadcastLeft(ctx context.Context, roomId string, left *room.LeaveRoomResponse) {
	c.broadcast(ctx, left.Conns, &Output{
		Type: "update-users-list",
		Payload: map[string]any{
			"users": left.Members,
		},
	})

	c.broadcast(ctx, left.Conns, &Output{
		Type: "user-left",
		Payload: map[string]any{
			"connectionID": left.LeftMember.Id,
			"roomID":       roomId,
			"username":     left.LeftMember.Username,
		},
	})

	if left.NewLeader != nil {
		c.broadcast(ctx, left.Conns, &Output{
			Type: "new-leader-assigned",
			Payload: map[string]any{
				"newLeaderID":       left.NewLeader.Id,
				"newLeaderUsername": left.NewLeader.Username,
			},
		})
	}
}
