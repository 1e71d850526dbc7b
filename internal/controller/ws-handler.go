package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/service/room"
)

var errInvalidPayload = errors.New("invalid payload")

func (c *controller) readInput(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %s", errInvalidPayload, err)
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		return fmt.Errorf("%w: %v", errInvalidPayload, validationErrors)
	}

	return nil
}

func (c *controller) handleNewUser(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var username string
	if err := json.Unmarshal(payload, &username); err != nil {
		return fmt.Errorf("%w: %s", errInvalidPayload, err)
	}

	return c.roomService.RegisterUser(ctx, &room.RegisterUserParams{
		ConnectionId: c.getConnectionIdFromCtx(ctx),
		Username:     username,
	})
}

type CreateRoomInput struct {
	Username string `json:"username" validate:"required,max=16"`
}

func (c *controller) handleCreateRoom(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input CreateRoomInput
	if err := c.readInput(payload, &input); err != nil {
		c.logger.InfoContext(ctx, "room create rejected", "error", err)
		return c.writeToConn(ctx, conn, &Output{Type: "room-create-fail"})
	}

	createRoomResp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		SessionId: c.getSessionIdFromCtx(ctx),
		Username:  input.Username,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "room create rejected", "error", err)
		return c.writeToConn(ctx, conn, &Output{Type: "room-create-fail"})
	}

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "created-room",
		Payload: map[string]any{
			"roomID": createRoomResp.Room.Id,
			"room":   createRoomResp.Room,
		},
	}); err != nil {
		return err
	}

	return c.writeToConn(ctx, conn, &Output{
		Type: "update-users-list",
		Payload: map[string]any{
			"users": createRoomResp.Room.MemberMap(),
		},
	})
}

type JoinRoomInput struct {
	Username string `json:"username" validate:"required,max=16"`
	RoomId   string `json:"roomID" validate:"required"`
}

func (c *controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input JoinRoomInput
	if err := c.readInput(payload, &input); err != nil {
		c.logger.InfoContext(ctx, "room join rejected", "error", err)
		return c.writeToConn(ctx, conn, &Output{Type: "room-join-fail"})
	}

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		SessionId: c.getSessionIdFromCtx(ctx),
		RoomId:    input.RoomId,
		Username:  input.Username,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "room join rejected", "error", err)
		return c.writeToConn(ctx, conn, &Output{Type: "room-join-fail"})
	}

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "joined-room",
		Payload: map[string]any{
			"roomID": joinRoomResp.Room.Id,
			"room":   joinRoomResp.Room,
		},
	}); err != nil {
		return err
	}

	c.broadcast(ctx, joinRoomResp.Conns, &Output{
		Type:    "message",
		Payload: joinRoomResp.JoinedMember.Username + " has joined!",
	})

	c.broadcast(ctx, joinRoomResp.Conns, &Output{
		Type: "update-users-list",
		Payload: map[string]any{
			"users": joinRoomResp.Room.MemberMap(),
		},
	})

	return nil
}

type LeaveRoomInput struct {
	RoomId string `json:"roomID" validate:"required"`
}

func (c *controller) handleLeaveRoom(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input LeaveRoomInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		RoomId:       input.RoomId,
		ConnectionId: c.getConnectionIdFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	if !leaveRoomResp.Deleted {
		c.broadcastLeft(ctx, input.RoomId, &leaveRoomResp)
	}

	return nil
}

type LeaderChangeRequestInput struct {
	NewLeaderId string `json:"newLeaderID" validate:"required"`
	RoomId      string `json:"roomID" validate:"required"`
}

func (c *controller) handleLeaderChangeRequest(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input LeaderChangeRequestInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	transferResp, err := c.roomService.TransferLeadership(ctx, &room.TransferLeadershipParams{
		RoomId:      input.RoomId,
		SenderId:    c.getConnectionIdFromCtx(ctx),
		NewLeaderId: input.NewLeaderId,
	})
	if err != nil {
		return fmt.Errorf("failed to transfer leadership: %w", err)
	}

	c.broadcast(ctx, transferResp.Conns, &Output{
		Type: "new-leader-assigned",
		Payload: map[string]any{
			"newLeaderID":       transferResp.NewLeader.Id,
			"newLeaderUsername": transferResp.NewLeader.Username,
		},
	})

	return nil
}

type SendMessageInput struct {
	Message  string `json:"message" validate:"required"`
	Username string `json:"username" validate:"required,max=16"`
	RoomId   string `json:"roomID" validate:"required"`
}

func (c *controller) handleSendMessage(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input SendMessageInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	sendMessageResp, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		RoomId:   input.RoomId,
		SenderId: c.getConnectionIdFromCtx(ctx),
		Username: input.Username,
		Message:  input.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.broadcast(ctx, sendMessageResp.Conns, &Output{
		Type:    "message",
		Payload: sendMessageResp.Message,
	})

	return nil
}

type SetVideoLinkInput struct {
	RoomId string `json:"roomID" validate:"required"`
	Link   string `json:"link" validate:"required"`
}

func (c *controller) handleSetVideoLink(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input SetVideoLinkInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	setVideoLinkResp, err := c.roomService.SetVideoLink(ctx, &room.SetVideoLinkParams{
		RoomId:    input.RoomId,
		SenderId:  c.getConnectionIdFromCtx(ctx),
		VideoLink: input.Link,
	})
	if err != nil {
		return fmt.Errorf("failed to set video link: %w", err)
	}

	c.broadcast(ctx, setVideoLinkResp.Conns, &Output{
		Type:    "set-videoLink",
		Payload: setVideoLinkResp.VideoLink,
	})

	return nil
}

type SetVideoTimeInput struct {
	CurrentTime int    `json:"currentTime" validate:"gte=0"`
	RoomId      string `json:"roomID" validate:"required"`
}

func (c *controller) handleSetVideoTime(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input SetVideoTimeInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	setVideoTimeResp, err := c.roomService.SetVideoTime(ctx, &room.SetVideoTimeParams{
		RoomId:      input.RoomId,
		SenderId:    c.getConnectionIdFromCtx(ctx),
		CurrentTime: input.CurrentTime,
	})
	if err != nil {
		return fmt.Errorf("failed to set video time: %w", err)
	}

	// over the rate window; dropped without complaint
	if !setVideoTimeResp.Accepted {
		return nil
	}

	c.broadcast(ctx, setVideoTimeResp.Conns, &Output{
		Type:    "videoTime-set",
		Payload: setVideoTimeResp.BroadcastTime,
	})

	return nil
}

type PlayPauseInput struct {
	RoomId string `json:"roomID" validate:"required"`
}

func (c *controller) handlePlayVideo(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input PlayPauseInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	playVideoResp, err := c.roomService.PlayVideo(ctx, &room.PlayVideoParams{
		RoomId:   input.RoomId,
		SenderId: c.getConnectionIdFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to play video: %w", err)
	}

	c.broadcast(ctx, playVideoResp.Conns, &Output{
		Type:    "video-played",
		Payload: "Video played",
	})

	return nil
}

func (c *controller) handlePauseVideo(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input PlayPauseInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	pauseVideoResp, err := c.roomService.PauseVideo(ctx, &room.PauseVideoParams{
		RoomId:   input.RoomId,
		SenderId: c.getConnectionIdFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to pause video: %w", err)
	}

	c.broadcast(ctx, pauseVideoResp.Conns, &Output{
		Type:    "video-paused",
		Payload: "Video paused",
	})

	return nil
}

type SetPlaybackRateInput struct {
	RoomId string  `json:"roomID" validate:"required"`
	Rate   float64 `json:"rate" validate:"required"`
}

func (c *controller) handleSetPlaybackRate(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input SetPlaybackRateInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	setRateResp, err := c.roomService.SetPlaybackRate(ctx, &room.SetPlaybackRateParams{
		RoomId:       input.RoomId,
		SenderId:     c.getConnectionIdFromCtx(ctx),
		PlaybackRate: input.Rate,
	})
	if err != nil {
		return fmt.Errorf("failed to set playback rate: %w", err)
	}

	c.broadcast(ctx, setRateResp.Conns, &Output{
		Type:    "playbackRate-set",
		Payload: setRateResp.PlaybackRate,
	})

	return nil
}

type RequestInitialSyncInput struct {
	RoomId string `json:"roomID" validate:"required"`
}

// handleRequestInitialSync serves the late-join handshake: forward a state
// request to the leader, block this requester's read loop until the leader
// answers or the deadline passes, then relay the snapshot back.
func (c *controller) handleRequestInitialSync(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input RequestInitialSyncInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	beginSyncResp, err := c.roomService.BeginSync(ctx, &room.BeginSyncParams{
		RoomId:      input.RoomId,
		RequesterId: c.getConnectionIdFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to begin sync: %w", err)
	}

	if err := c.writeToConn(ctx, beginSyncResp.LeaderConn, &Output{
		Type: "request-player-state",
		Payload: map[string]any{
			"syncID": beginSyncResp.SyncId,
		},
	}); err != nil {
		c.roomService.CancelSync(beginSyncResp.SyncId)
		return fmt.Errorf("failed to reach leader: %w", room.ErrSyncUnavailable)
	}

	snapshot, err := c.roomService.AwaitSync(ctx, beginSyncResp.SyncId)
	if err != nil {
		return fmt.Errorf("failed to await sync: %w", err)
	}

	return c.writeToConn(ctx, conn, &Output{
		Type:    "initial-sync",
		Payload: snapshot,
	})
}

type InitialSyncStateInput struct {
	SyncId       string  `json:"syncID" validate:"required"`
	CurrentTime  int     `json:"currentTime" validate:"gte=0"`
	IsPaused     bool    `json:"videoPaused"`
	PlaybackRate float64 `json:"currentPlaybackRate" validate:"required"`
}

func (c *controller) handleInitialSyncState(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input InitialSyncStateInput
	if err := c.readInput(payload, &input); err != nil {
		return err
	}

	c.roomService.ResolveSync(ctx, &room.ResolveSyncParams{
		SyncId:   input.SyncId,
		SenderId: c.getConnectionIdFromCtx(ctx),
		Snapshot: room.PlayerSnapshot{
			CurrentTime:  input.CurrentTime,
			IsPaused:     input.IsPaused,
			PlaybackRate: input.PlaybackRate,
		},
	})

	return nil
}
