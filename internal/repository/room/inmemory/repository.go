package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vidroom/server/internal/repository/room"
	"github.com/vidroom/server/pkg/randstr"
)

const roomIdLength = 14

type roomState struct {
	id       string
	members  []room.Member // join order
	leaderId string
	player   room.Player
}

type repo struct {
	rooms        map[string]*roomState
	memberIndex  map[string]string // member id -> room id
	generator    *randstr.Generator
	membersLimit int
	logger       *slog.Logger
	mu           sync.RWMutex
}

func NewRepo(membersLimit int, logger *slog.Logger) *repo {
	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	return &repo{
		rooms:        make(map[string]*roomState),
		memberIndex:  make(map[string]string),
		generator:    randstr.New(letterBytes),
		membersLimit: membersLimit,
		logger:       logger,
	}
}

func (r *repo) snapshot(state *roomState) room.Room {
	members := make([]room.Member, len(state.members))
	copy(members, state.members)

	return room.Room{
		Id:       state.id,
		Members:  members,
		LeaderId: state.leaderId,
		Player:   state.player,
	}
}

func (r *repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memberIndex[params.OwnerId]; ok {
		return room.Room{}, room.ErrAlreadyInRoom
	}

	roomId := r.generator.GenerateRandomString(roomIdLength)
	for r.rooms[roomId] != nil {
		roomId = r.generator.GenerateRandomString(roomIdLength)
	}

	state := &roomState{
		id: roomId,
		members: []room.Member{{
			Id:       params.OwnerId,
			Username: params.OwnerUsername,
		}},
		leaderId: params.OwnerId,
		player: room.Player{
			VideoLink:    "",
			CurrentTime:  0,
			IsPaused:     true,
			PlaybackRate: 1,
		},
	}

	r.rooms[roomId] = state
	r.memberIndex[params.OwnerId] = roomId

	return r.snapshot(state), nil
}

func (r *repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.rooms[roomId]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	return r.snapshot(state), nil
}

func (r *repo) FindRoomIdByMember(ctx context.Context, memberId string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomId, ok := r.memberIndex[memberId]
	if !ok {
		return "", room.ErrRoomNotFound
	}

	return roomId, nil
}

func (r *repo) AddMember(ctx context.Context, params *room.AddMemberParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[params.RoomId]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	if _, ok := r.memberIndex[params.MemberId]; ok {
		return room.Room{}, room.ErrAlreadyInRoom
	}

	if len(state.members) >= r.membersLimit {
		return room.Room{}, room.ErrRoomFull
	}

	state.members = append(state.members, room.Member{
		Id:       params.MemberId,
		Username: params.Username,
	})
	r.memberIndex[params.MemberId] = params.RoomId

	return r.snapshot(state), nil
}

func (r *repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) (room.RemoveMemberResult, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[params.RoomId]
	if !ok {
		return room.RemoveMemberResult{}, room.ErrRoomNotFound
	}

	idx := -1
	for i, member := range state.members {
		if member.Id == params.MemberId {
			idx = i
			break
		}
	}
	if idx == -1 {
		return room.RemoveMemberResult{}, room.ErrMemberNotFound
	}

	state.members = append(state.members[:idx], state.members[idx+1:]...)
	delete(r.memberIndex, params.MemberId)

	if len(state.members) == 0 {
		delete(r.rooms, params.RoomId)
		return room.RemoveMemberResult{Deleted: true}, nil
	}

	var result room.RemoveMemberResult
	if state.leaderId == params.MemberId {
		// earliest remaining joiner takes over
		promoted := state.members[0]
		state.leaderId = promoted.Id
		result.NewLeader = &promoted
	}

	return result, nil
}

func (r *repo) SetLeader(ctx context.Context, params *room.SetLeaderParams) (room.Member, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[params.RoomId]
	if !ok {
		return room.Member{}, room.ErrRoomNotFound
	}

	for _, member := range state.members {
		if member.Id == params.MemberId {
			state.leaderId = member.Id
			return member, nil
		}
	}

	return room.Member{}, room.ErrMemberNotFound
}

func (r *repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.rooms[roomId]
	if !ok {
		return room.Player{}, room.ErrRoomNotFound
	}

	return state.player, nil
}

func (r *repo) UpdatePlayerLink(ctx context.Context, params *room.UpdatePlayerLinkParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	state.player.VideoLink = params.VideoLink
	state.player.CurrentTime = 0

	return nil
}

func (r *repo) UpdatePlayerTime(ctx context.Context, params *room.UpdatePlayerTimeParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	state.player.CurrentTime = params.CurrentTime

	return nil
}

func (r *repo) UpdatePlayerPaused(ctx context.Context, params *room.UpdatePlayerPausedParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	state.player.IsPaused = params.IsPaused

	return nil
}

func (r *repo) UpdatePlayerRate(ctx context.Context, params *room.UpdatePlayerRateParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.rooms[params.RoomId]
	if !ok {
		return room.ErrRoomNotFound
	}

	state.player.PlaybackRate = params.PlaybackRate

	return nil
}
