package room

import (
	"context"
	"strings"

	"github.com/gorilla/websocket"
)

type SendMessageParams struct {
	RoomId   string
	SenderId string
	Username string
	Message  string
}

type SendMessageResponse struct {
	Message string
	Conns   []*websocket.Conn
}

// SendMessage relays chat text to the whole room, sender included. Empty
// text, an unknown room, or a sender outside the room all reject the same
// way; the sender alone hears about it.
func (s *service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	message := strings.TrimSpace(params.Message)
	if message == "" {
		return SendMessageResponse{}, ErrInvalidMessage
	}

	r, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return SendMessageResponse{}, ErrInvalidMessage
	}

	isMember := false
	for _, member := range r.Members {
		if member.Id == params.SenderId {
			isMember = true
			break
		}
	}
	if !isMember {
		return SendMessageResponse{}, ErrInvalidMessage
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return SendMessageResponse{}, err
	}

	return SendMessageResponse{
		Message: params.Username + ": " + message,
		Conns:   conns,
	}, nil
}
