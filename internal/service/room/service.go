package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/repository/room"
)

var (
	ErrNotLeader           = errors.New("sender is not the room leader")
	ErrTargetNotInRoom     = errors.New("target is not in the room")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrInvalidPlaybackRate = errors.New("invalid playback rate")
	ErrSyncTimeout         = errors.New("initial sync timed out")
	ErrSyncUnavailable     = errors.New("initial sync unavailable")
)

// timeUpdateWindow bounds how often a leader's continuous playback-position
// reports are accepted, per connection. Excess updates are dropped silently.
const timeUpdateWindow = 250 * time.Millisecond

// syncRequestTimeout is how long the server waits for the leader to answer a
// forwarded initial-sync request. The client side waits slightly longer.
const syncRequestTimeout = 4 * time.Second

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.Room, error)
	GetRoom(context.Context, string) (room.Room, error)
	FindRoomIdByMember(context.Context, string) (string, error)
	AddMember(context.Context, *room.AddMemberParams) (room.Room, error)
	RemoveMember(context.Context, *room.RemoveMemberParams) (room.RemoveMemberResult, error)
	SetLeader(context.Context, *room.SetLeaderParams) (room.Member, error)
	GetPlayer(context.Context, string) (room.Player, error)
	UpdatePlayerLink(context.Context, *room.UpdatePlayerLinkParams) error
	UpdatePlayerTime(context.Context, *room.UpdatePlayerTimeParams) error
	UpdatePlayerPaused(context.Context, *room.UpdatePlayerPausedParams) error
	UpdatePlayerRate(context.Context, *room.UpdatePlayerRateParams) error
}

type iSessionRepo interface {
	Bind(ctx context.Context, sessionId, connectionId string) error
	Resolve(ctx context.Context, sessionId string) (string, error)
	Unbind(ctx context.Context, sessionId string) error
}

type iConnRepo interface {
	Add(conn *websocket.Conn, connectionId string) error
	RemoveByConnectionId(connectionId string) error
	GetConn(connectionId string) (*websocket.Conn, error)
	SetUsername(connectionId, username string) error
	GetUsername(connectionId string) (string, error)
}

type pendingSync struct {
	ch       chan PlayerSnapshot
	leaderId string
	resolved bool
}

type service struct {
	roomRepo    iRoomRepo
	sessionRepo iSessionRepo
	connRepo    iConnRepo
	logger      *slog.Logger

	timeGateMu sync.Mutex
	timeGate   map[string]time.Time // sender connection id -> last accepted update

	syncMu       sync.Mutex
	pendingSyncs map[string]*pendingSync
	syncTimeout  time.Duration
}

func NewService(roomRepo iRoomRepo, sessionRepo iSessionRepo, connRepo iConnRepo, logger *slog.Logger) *service {
	return &service{
		roomRepo:     roomRepo,
		sessionRepo:  sessionRepo,
		connRepo:     connRepo,
		logger:       logger,
		timeGate:     make(map[string]time.Time),
		pendingSyncs: make(map[string]*pendingSync),
		syncTimeout:  syncRequestTimeout,
	}
}
