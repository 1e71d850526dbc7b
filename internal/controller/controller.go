package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/validator"
	"github.com/vidroom/server/pkg/wsrouter"
)

type iRoomService interface {
	Connect(context.Context, *room.ConnectParams) error
	Disconnect(context.Context, *room.DisconnectParams) (room.DisconnectResponse, error)
	RegisterUser(context.Context, *room.RegisterUserParams) error
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	TransferLeadership(context.Context, *room.TransferLeadershipParams) (room.TransferLeadershipResponse, error)
	SendMessage(context.Context, *room.SendMessageParams) (room.SendMessageResponse, error)
	SetVideoLink(context.Context, *room.SetVideoLinkParams) (room.SetVideoLinkResponse, error)
	SetVideoTime(context.Context, *room.SetVideoTimeParams) (room.SetVideoTimeResponse, error)
	PlayVideo(context.Context, *room.PlayVideoParams) (room.PlayVideoResponse, error)
	PauseVideo(context.Context, *room.PauseVideoParams) (room.PauseVideoResponse, error)
	SetPlaybackRate(context.Context, *room.SetPlaybackRateParams) (room.SetPlaybackRateResponse, error)
	BeginSync(context.Context, *room.BeginSyncParams) (room.BeginSyncResponse, error)
	AwaitSync(context.Context, string) (room.PlayerSnapshot, error)
	ResolveSync(context.Context, *room.ResolveSyncParams)
	CancelSync(string)
	GetRoomState(context.Context, string) (room.Room, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	logger      *slog.Logger
	staticDir   string

	// handlers of different connections fan out to the same peer; gorilla
	// allows one writer per connection, so every write takes the peer's lock
	writeLocksMu sync.Mutex
	writeLocks   map[*websocket.Conn]*sync.Mutex
}

func NewController(roomService iRoomService, staticDir string, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
		staticDir:   staticDir,
		writeLocks:  make(map[*websocket.Conn]*sync.Mutex),
	}
	c.wsmux = c.getWSRouter()

	return c
}
