package room

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repoRoom "github.com/vidroom/server/internal/repository/room"
	roomInmemory "github.com/vidroom/server/internal/repository/room/inmemory"
	"github.com/vidroom/server/internal/repository/session"
	sessionRedis "github.com/vidroom/server/internal/repository/session/redis"

	connInmemory "github.com/vidroom/server/internal/repository/connection/inmemory"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	roomRepo := roomInmemory.NewRepo(20, slog.Default())
	sessionRepo := sessionRedis.NewRepo(rc)
	connRepo := connInmemory.NewRepo()

	return NewService(roomRepo, sessionRepo, connRepo, slog.Default())
}

func connect(t *testing.T, svc *service, sessionId, connectionId string) {
	t.Helper()

	err := svc.Connect(context.Background(), &ConnectParams{
		Conn:         &websocket.Conn{},
		ConnectionId: connectionId,
		SessionId:    sessionId,
	})
	require.NoError(t, err)
}

func TestCreateAndJoinRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		SessionId: "sess-a",
		Username:  "  alice  ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, createResp.Room.Id)
	assert.Equal(t, Member{Id: "conn-a", Username: "alice"}, createResp.Room.Leader, "creator must lead")
	assert.Len(t, createResp.Room.Members, 1)
	assert.True(t, createResp.Room.Player.IsPaused)
	assert.Equal(t, float64(1), createResp.Room.Player.PlaybackRate)

	// one membership per session
	_, err = svc.CreateRoom(ctx, &CreateRoomParams{
		SessionId: "sess-a",
		Username:  "alice",
	})
	assert.ErrorIs(t, err, repoRoom.ErrAlreadyInRoom)

	connect(t, svc, "sess-b", "conn-b")

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		SessionId: "sess-b",
		RoomId:    "nope",
		Username:  "bob",
	})
	assert.ErrorIs(t, err, repoRoom.ErrRoomNotFound)

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		SessionId: "sess-b",
		RoomId:    createResp.Room.Id,
		Username:  " ",
	})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	joinResp, err := svc.JoinRoom(ctx, &JoinRoomParams{
		SessionId: "sess-b",
		RoomId:    createResp.Room.Id,
		Username:  "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, Member{Id: "conn-b", Username: "bob"}, joinResp.JoinedMember)
	assert.Len(t, joinResp.Room.Members, 2)
	assert.Equal(t, "conn-a", joinResp.Room.Leader.Id, "joining must not change the leader")
	assert.Len(t, joinResp.Conns, 2)

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		SessionId: "sess-b",
		RoomId:    createResp.Room.Id,
		Username:  "bob",
	})
	assert.ErrorIs(t, err, repoRoom.ErrAlreadyInRoom)

	_, err = svc.CreateRoom(ctx, &CreateRoomParams{
		SessionId: "sess-unknown",
		Username:  "ghost",
	})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestPlaybackControl(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")
	connect(t, svc, "sess-b", "conn-b")

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{SessionId: "sess-a", Username: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{SessionId: "sess-b", RoomId: roomId, Username: "bob"})
	require.NoError(t, err)

	// only the leader drives the player
	_, err = svc.SetVideoLink(ctx, &SetVideoLinkParams{RoomId: roomId, SenderId: "conn-b", VideoLink: "https://example.com/v/1"})
	assert.ErrorIs(t, err, ErrNotLeader)
	_, err = svc.PlayVideo(ctx, &PlayVideoParams{RoomId: roomId, SenderId: "conn-b"})
	assert.ErrorIs(t, err, ErrNotLeader)
	_, err = svc.SetVideoTime(ctx, &SetVideoTimeParams{RoomId: roomId, SenderId: "conn-b", CurrentTime: 10})
	assert.ErrorIs(t, err, ErrNotLeader)

	linkResp, err := svc.SetVideoLink(ctx, &SetVideoLinkParams{RoomId: roomId, SenderId: "conn-a", VideoLink: "https://example.com/v/1"})
	require.NoError(t, err)
	assert.Len(t, linkResp.Conns, 1, "sender must not get its own update")

	playResp, err := svc.PlayVideo(ctx, &PlayVideoParams{RoomId: roomId, SenderId: "conn-a"})
	require.NoError(t, err)
	assert.Len(t, playResp.Conns, 1)

	state, err := svc.GetRoomState(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v/1", state.Player.VideoLink)
	assert.False(t, state.Player.IsPaused)

	_, err = svc.PauseVideo(ctx, &PauseVideoParams{RoomId: roomId, SenderId: "conn-a"})
	require.NoError(t, err)

	state, err = svc.GetRoomState(ctx, roomId)
	require.NoError(t, err)
	assert.True(t, state.Player.IsPaused)

	rateResp, err := svc.SetPlaybackRate(ctx, &SetPlaybackRateParams{RoomId: roomId, SenderId: "conn-a", PlaybackRate: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 1.5, rateResp.PlaybackRate)

	_, err = svc.SetPlaybackRate(ctx, &SetPlaybackRateParams{RoomId: roomId, SenderId: "conn-a", PlaybackRate: 3})
	assert.ErrorIs(t, err, ErrInvalidPlaybackRate)

	state, err = svc.GetRoomState(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, 1.5, state.Player.PlaybackRate, "rejected rate must not stick")
}

func TestSetVideoTimeRateLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")
	connect(t, svc, "sess-b", "conn-b")

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{SessionId: "sess-a", Username: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{SessionId: "sess-b", RoomId: roomId, Username: "bob"})
	require.NoError(t, err)

	timeResp, err := svc.SetVideoTime(ctx, &SetVideoTimeParams{RoomId: roomId, SenderId: "conn-a", CurrentTime: 42})
	require.NoError(t, err)
	assert.True(t, timeResp.Accepted)
	assert.Equal(t, 43, timeResp.BroadcastTime, "broadcast runs one second ahead")
	assert.Len(t, timeResp.Conns, 1)

	// a second report inside the window is dropped without error
	timeResp, err = svc.SetVideoTime(ctx, &SetVideoTimeParams{RoomId: roomId, SenderId: "conn-a", CurrentTime: 50})
	require.NoError(t, err)
	assert.False(t, timeResp.Accepted)

	state, err := svc.GetRoomState(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, 42, state.Player.CurrentTime)

	// age the gate instead of sleeping
	svc.timeGateMu.Lock()
	svc.timeGate["conn-a"] = time.Now().Add(-timeUpdateWindow)
	svc.timeGateMu.Unlock()

	timeResp, err = svc.SetVideoTime(ctx, &SetVideoTimeParams{RoomId: roomId, SenderId: "conn-a", CurrentTime: 50})
	require.NoError(t, err)
	assert.True(t, timeResp.Accepted)

	// a new link restarts playback from zero
	_, err = svc.SetVideoLink(ctx, &SetVideoLinkParams{RoomId: roomId, SenderId: "conn-a", VideoLink: "https://example.com/v/2"})
	require.NoError(t, err)

	state, err = svc.GetRoomState(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Player.CurrentTime)
}

func TestTransferLeadership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")
	connect(t, svc, "sess-b", "conn-b")

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{SessionId: "sess-a", Username: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{SessionId: "sess-b", RoomId: roomId, Username: "bob"})
	require.NoError(t, err)

	_, err = svc.TransferLeadership(ctx, &TransferLeadershipParams{RoomId: roomId, SenderId: "conn-b", NewLeaderId: "conn-b"})
	assert.ErrorIs(t, err, ErrNotLeader)

	_, err = svc.TransferLeadership(ctx, &TransferLeadershipParams{RoomId: roomId, SenderId: "conn-a", NewLeaderId: "conn-9"})
	assert.ErrorIs(t, err, ErrTargetNotInRoom)

	state, err := svc.GetRoomState(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, "conn-a", state.Leader.Id, "failed transfer must not change the leader")

	transferResp, err := svc.TransferLeadership(ctx, &TransferLeadershipParams{RoomId: roomId, SenderId: "conn-a", NewLeaderId: "conn-b"})
	require.NoError(t, err)
	assert.Equal(t, Member{Id: "conn-b", Username: "bob"}, transferResp.NewLeader)
	assert.Len(t, transferResp.Conns, 2)

	// the promotion takes effect immediately
	_, err = svc.SetVideoLink(ctx, &SetVideoLinkParams{RoomId: roomId, SenderId: "conn-b", VideoLink: "https://example.com/v/1"})
	require.NoError(t, err)
	_, err = svc.SetVideoLink(ctx, &SetVideoLinkParams{RoomId: roomId, SenderId: "conn-a", VideoLink: "https://example.com/v/2"})
	assert.ErrorIs(t, err, ErrNotLeader)
}

func TestSendMessage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")
	connect(t, svc, "sess-b", "conn-b")

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{SessionId: "sess-a", Username: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{SessionId: "sess-b", RoomId: roomId, Username: "bob"})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "conn-a", Username: "alice", Message: "   "})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = svc.SendMessage(ctx, &SendMessageParams{RoomId: "nope", SenderId: "conn-a", Username: "alice", Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = svc.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "conn-9", Username: "ghost", Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	msgResp, err := svc.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "conn-a", Username: "alice", Message: "hi all"})
	require.NoError(t, err)
	assert.Equal(t, "alice: hi all", msgResp.Message)
	assert.Len(t, msgResp.Conns, 2, "chat goes to the sender too")
}

func TestRegisterUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")

	require.NoError(t, svc.RegisterUser(ctx, &RegisterUserParams{ConnectionId: "conn-a", Username: "  "}))
	_, err := svc.connRepo.GetUsername("conn-a")
	assert.Error(t, err, "blank names are ignored")

	require.NoError(t, svc.RegisterUser(ctx, &RegisterUserParams{ConnectionId: "conn-a", Username: " alice "}))
	username, err := svc.connRepo.GetUsername("conn-a")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestDisconnect(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")
	connect(t, svc, "sess-b", "conn-b")
	connect(t, svc, "sess-c", "conn-c")

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{SessionId: "sess-a", Username: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{SessionId: "sess-b", RoomId: roomId, Username: "bob"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, &JoinRoomParams{SessionId: "sess-c", RoomId: roomId, Username: "carol"})
	require.NoError(t, err)

	timeResp, err := svc.SetVideoTime(ctx, &SetVideoTimeParams{RoomId: roomId, SenderId: "conn-a", CurrentTime: 10})
	require.NoError(t, err)
	require.True(t, timeResp.Accepted)

	// the leader dropping promotes the earliest remaining joiner
	discResp, err := svc.Disconnect(ctx, &DisconnectParams{ConnectionId: "conn-a", SessionId: "sess-a"})
	require.NoError(t, err)
	assert.True(t, discResp.WasInRoom)
	assert.Equal(t, roomId, discResp.RoomId)
	assert.False(t, discResp.Left.Deleted)
	require.NotNil(t, discResp.Left.NewLeader)
	assert.Equal(t, Member{Id: "conn-b", Username: "bob"}, *discResp.Left.NewLeader)
	assert.Equal(t, map[string]string{"conn-b": "bob", "conn-c": "carol"}, discResp.Left.Members)
	assert.Len(t, discResp.Left.Conns, 2)

	_, err = svc.sessionRepo.Resolve(ctx, "sess-a")
	assert.ErrorIs(t, err, session.ErrSessionNotFound, "session must unbind on disconnect")
	_, err = svc.connRepo.GetConn("conn-a")
	assert.Error(t, err)

	svc.timeGateMu.Lock()
	_, gated := svc.timeGate["conn-a"]
	svc.timeGateMu.Unlock()
	assert.False(t, gated, "the time gate must clear on disconnect")

	// a freed session may join again right away
	connect(t, svc, "sess-a", "conn-a2")
	_, err = svc.JoinRoom(ctx, &JoinRoomParams{SessionId: "sess-a", RoomId: roomId, Username: "alice"})
	require.NoError(t, err)

	// a disconnect outside any room is still clean
	connect(t, svc, "sess-d", "conn-d")
	discResp, err = svc.Disconnect(ctx, &DisconnectParams{ConnectionId: "conn-d", SessionId: "sess-d"})
	require.NoError(t, err)
	assert.False(t, discResp.WasInRoom)
}

func TestLastMemberLeavingDeletesRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connect(t, svc, "sess-a", "conn-a")

	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{SessionId: "sess-a", Username: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	leaveResp, err := svc.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, ConnectionId: "conn-a"})
	require.NoError(t, err)
	assert.True(t, leaveResp.Deleted)
	assert.Nil(t, leaveResp.NewLeader)

	_, err = svc.GetRoomState(ctx, roomId)
	assert.ErrorIs(t, err, repoRoom.ErrRoomNotFound)
}
