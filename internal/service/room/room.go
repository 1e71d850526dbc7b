package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/repository/room"
)

type RegisterUserParams struct {
	ConnectionId string
	Username     string
}

// RegisterUser attaches a display name to a connection. Blank names are
// ignored, matching how clients probe the event.
func (s *service) RegisterUser(ctx context.Context, params *RegisterUserParams) error {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		s.logger.DebugContext(ctx, "ignoring blank username", "connection_id", params.ConnectionId)
		return nil
	}

	if err := s.connRepo.SetUsername(params.ConnectionId, username); err != nil {
		return fmt.Errorf("failed to set username: %w", err)
	}

	return nil
}

type ConnectParams struct {
	Conn         *websocket.Conn
	ConnectionId string
	SessionId    string
}

// Connect registers a fresh connection and (re)binds its session to it.
func (s *service) Connect(ctx context.Context, params *ConnectParams) error {
	if err := s.connRepo.Add(params.Conn, params.ConnectionId); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}

	if err := s.sessionRepo.Bind(ctx, params.SessionId, params.ConnectionId); err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}

	return nil
}

type CreateRoomParams struct {
	SessionId string
	Username  string
}

type CreateRoomResponse struct {
	Room Room
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	// the session, not the raw connection, is what may hold one membership
	connectionId, err := s.sessionRepo.Resolve(ctx, params.SessionId)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to resolve session: %w", err)
	}

	if _, err := s.roomRepo.FindRoomIdByMember(ctx, connectionId); err == nil {
		return CreateRoomResponse{}, room.ErrAlreadyInRoom
	}

	username := strings.TrimSpace(params.Username)
	if username == "" {
		return CreateRoomResponse{}, ErrInvalidMessage
	}

	if err := s.connRepo.SetUsername(connectionId, username); err != nil {
		s.logger.WarnContext(ctx, "failed to set username", "error", err)
	}

	createdRoom, err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		OwnerId:       connectionId,
		OwnerUsername: username,
	})
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to create room: %w", err)
	}

	return CreateRoomResponse{Room: s.toRoomModel(createdRoom)}, nil
}

type JoinRoomParams struct {
	SessionId string
	RoomId    string
	Username  string
}

type JoinRoomResponse struct {
	Room         Room
	JoinedMember Member
	Conns        []*websocket.Conn
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	connectionId, err := s.sessionRepo.Resolve(ctx, params.SessionId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to resolve session: %w", err)
	}

	if _, err := s.roomRepo.FindRoomIdByMember(ctx, connectionId); err == nil {
		return JoinRoomResponse{}, room.ErrAlreadyInRoom
	}

	username := strings.TrimSpace(params.Username)
	if username == "" {
		return JoinRoomResponse{}, ErrInvalidMessage
	}

	if err := s.connRepo.SetUsername(connectionId, username); err != nil {
		s.logger.WarnContext(ctx, "failed to set username", "error", err)
	}

	joinedRoom, err := s.roomRepo.AddMember(ctx, &room.AddMemberParams{
		RoomId:   params.RoomId,
		MemberId: connectionId,
		Username: username,
	})
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add member: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse{
		Room:         s.toRoomModel(joinedRoom),
		JoinedMember: Member{Id: connectionId, Username: username},
		Conns:        conns,
	}, nil
}

type LeaveRoomParams struct {
	RoomId       string
	ConnectionId string
}

type LeaveRoomResponse struct {
	LeftMember Member
	NewLeader  *Member
	Members    map[string]string
	Deleted    bool
	Conns      []*websocket.Conn
}

func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	username, err := s.connRepo.GetUsername(params.ConnectionId)
	if err != nil {
		s.logger.DebugContext(ctx, "leaving member has no username", "connection_id", params.ConnectionId)
	}

	result, err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		RoomId:   params.RoomId,
		MemberId: params.ConnectionId,
	})
	if err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	resp := LeaveRoomResponse{
		LeftMember: Member{Id: params.ConnectionId, Username: username},
		Deleted:    result.Deleted,
	}

	if result.NewLeader != nil {
		resp.NewLeader = &Member{Id: result.NewLeader.Id, Username: result.NewLeader.Username}
	}

	// nobody left to notify
	if result.Deleted {
		return resp, nil
	}

	remaining, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}
	resp.Members = s.toRoomModel(remaining).MemberMap()

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}
	resp.Conns = conns

	return resp, nil
}

type DisconnectParams struct {
	ConnectionId string
	SessionId    string
}

type DisconnectResponse struct {
	RoomId    string
	WasInRoom bool
	Left      LeaveRoomResponse
}

// Disconnect runs the leave sequence for the (at most one) room the
// connection belonged to, then purges every per-connection record. Cleanup
// failures are logged, never returned; disconnect must always finish.
func (s *service) Disconnect(ctx context.Context, params *DisconnectParams) (DisconnectResponse, error) {
	var resp DisconnectResponse

	roomId, err := s.roomRepo.FindRoomIdByMember(ctx, params.ConnectionId)
	if err == nil {
		left, err := s.LeaveRoom(ctx, &LeaveRoomParams{
			RoomId:       roomId,
			ConnectionId: params.ConnectionId,
		})
		if err != nil {
			if !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrMemberNotFound) {
				return DisconnectResponse{}, err
			}
			s.logger.WarnContext(ctx, "room vanished during disconnect", "room_id", roomId, "error", err)
		} else {
			resp.RoomId = roomId
			resp.WasInRoom = true
			resp.Left = left
		}
	}

	if err := s.sessionRepo.Unbind(ctx, params.SessionId); err != nil {
		s.logger.WarnContext(ctx, "failed to unbind session", "error", err)
	}

	if err := s.connRepo.RemoveByConnectionId(params.ConnectionId); err != nil {
		s.logger.WarnContext(ctx, "failed to remove connection", "error", err)
	}

	s.clearTimeGate(params.ConnectionId)

	return resp, nil
}

type TransferLeadershipParams struct {
	RoomId      string
	SenderId    string
	NewLeaderId string
}

type TransferLeadershipResponse struct {
	NewLeader Member
	Conns     []*websocket.Conn
}

func (s *service) TransferLeadership(ctx context.Context, params *TransferLeadershipParams) (TransferLeadershipResponse, error) {
	if err := s.checkIfLeader(ctx, params.RoomId, params.SenderId); err != nil {
		return TransferLeadershipResponse{}, err
	}

	newLeader, err := s.roomRepo.SetLeader(ctx, &room.SetLeaderParams{
		RoomId:   params.RoomId,
		MemberId: params.NewLeaderId,
	})
	if err != nil {
		if errors.Is(err, room.ErrMemberNotFound) {
			return TransferLeadershipResponse{}, ErrTargetNotInRoom
		}

		return TransferLeadershipResponse{}, fmt.Errorf("failed to set leader: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return TransferLeadershipResponse{}, err
	}

	return TransferLeadershipResponse{
		NewLeader: Member{Id: newLeader.Id, Username: newLeader.Username},
		Conns:     conns,
	}, nil
}

func (s *service) GetRoomState(ctx context.Context, roomId string) (Room, error) {
	r, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return Room{}, err
	}

	return s.toRoomModel(r), nil
}
