package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/repository/room"
)

func (s *service) toRoomModel(r room.Room) Room {
	members := make([]Member, 0, len(r.Members))
	var leader Member
	for _, m := range r.Members {
		member := Member{Id: m.Id, Username: m.Username}
		if m.Id == r.LeaderId {
			leader = member
		}
		members = append(members, member)
	}

	return Room{
		Id:      r.Id,
		Members: members,
		Leader:  leader,
		Player: Player{
			VideoLink:    r.Player.VideoLink,
			CurrentTime:  r.Player.CurrentTime,
			IsPaused:     r.Player.IsPaused,
			PlaybackRate: r.Player.PlaybackRate,
		},
	}
}

// getConnsByRoomId returns the live connections of every room member except
// those listed in exclude. Members without a live connection are skipped.
func (s *service) getConnsByRoomId(ctx context.Context, roomId string, exclude ...string) ([]*websocket.Conn, error) {
	r, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	conns := make([]*websocket.Conn, 0, len(r.Members))
	for _, member := range r.Members {
		if contains(exclude, member.Id) {
			continue
		}

		conn, err := s.connRepo.GetConn(member.Id)
		if err != nil {
			s.logger.DebugContext(ctx, "member has no live connection", "member_id", member.Id)
			continue
		}

		conns = append(conns, conn)
	}

	return conns, nil
}

// checkIfLeader is the guard in front of every playback mutation.
func (s *service) checkIfLeader(ctx context.Context, roomId, senderId string) error {
	r, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return err
	}

	if r.LeaderId != senderId {
		return ErrNotLeader
	}

	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}

	return false
}
