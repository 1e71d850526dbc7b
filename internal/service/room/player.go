package room

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/repository/room"
)

var allowedPlaybackRates = map[float64]struct{}{
	0.25: {},
	0.5:  {},
	0.75: {},
	1:    {},
	1.25: {},
	1.5:  {},
	1.75: {},
	2:    {},
}

// allowTimeUpdate reports whether another playback-position update from the
// sender fits inside the rate window, and records it when it does.
func (s *service) allowTimeUpdate(senderId string) bool {
	s.timeGateMu.Lock()
	defer s.timeGateMu.Unlock()

	now := time.Now()
	last, ok := s.timeGate[senderId]
	if ok && now.Sub(last) < timeUpdateWindow {
		return false
	}

	s.timeGate[senderId] = now

	return true
}

func (s *service) clearTimeGate(senderId string) {
	s.timeGateMu.Lock()
	defer s.timeGateMu.Unlock()

	delete(s.timeGate, senderId)
}

type SetVideoLinkParams struct {
	RoomId    string
	SenderId  string
	VideoLink string
}

type SetVideoLinkResponse struct {
	VideoLink string
	Conns     []*websocket.Conn
}

func (s *service) SetVideoLink(ctx context.Context, params *SetVideoLinkParams) (SetVideoLinkResponse, error) {
	if err := s.checkIfLeader(ctx, params.RoomId, params.SenderId); err != nil {
		return SetVideoLinkResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerLink(ctx, &room.UpdatePlayerLinkParams{
		RoomId:    params.RoomId,
		VideoLink: params.VideoLink,
	}); err != nil {
		return SetVideoLinkResponse{}, fmt.Errorf("failed to update player link: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return SetVideoLinkResponse{}, err
	}

	return SetVideoLinkResponse{
		VideoLink: params.VideoLink,
		Conns:     conns,
	}, nil
}

type SetVideoTimeParams struct {
	RoomId      string
	SenderId    string
	CurrentTime int
}

type SetVideoTimeResponse struct {
	Accepted bool
	// BroadcastTime runs one second ahead of the stored time to absorb
	// network and decode latency on the followers' side.
	BroadcastTime int
	Conns         []*websocket.Conn
}

func (s *service) SetVideoTime(ctx context.Context, params *SetVideoTimeParams) (SetVideoTimeResponse, error) {
	if err := s.checkIfLeader(ctx, params.RoomId, params.SenderId); err != nil {
		return SetVideoTimeResponse{}, err
	}

	if !s.allowTimeUpdate(params.SenderId) {
		return SetVideoTimeResponse{Accepted: false}, nil
	}

	if err := s.roomRepo.UpdatePlayerTime(ctx, &room.UpdatePlayerTimeParams{
		RoomId:      params.RoomId,
		CurrentTime: params.CurrentTime,
	}); err != nil {
		return SetVideoTimeResponse{}, fmt.Errorf("failed to update player time: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return SetVideoTimeResponse{}, err
	}

	return SetVideoTimeResponse{
		Accepted:      true,
		BroadcastTime: params.CurrentTime + 1,
		Conns:         conns,
	}, nil
}

type PlayVideoParams struct {
	RoomId   string
	SenderId string
}

type PlayVideoResponse struct {
	Conns []*websocket.Conn
}

func (s *service) PlayVideo(ctx context.Context, params *PlayVideoParams) (PlayVideoResponse, error) {
	if err := s.checkIfLeader(ctx, params.RoomId, params.SenderId); err != nil {
		return PlayVideoResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerPaused(ctx, &room.UpdatePlayerPausedParams{
		RoomId:   params.RoomId,
		IsPaused: false,
	}); err != nil {
		return PlayVideoResponse{}, fmt.Errorf("failed to update player paused: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return PlayVideoResponse{}, err
	}

	return PlayVideoResponse{Conns: conns}, nil
}

type PauseVideoParams struct {
	RoomId   string
	SenderId string
}

type PauseVideoResponse struct {
	Conns []*websocket.Conn
}

func (s *service) PauseVideo(ctx context.Context, params *PauseVideoParams) (PauseVideoResponse, error) {
	if err := s.checkIfLeader(ctx, params.RoomId, params.SenderId); err != nil {
		return PauseVideoResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerPaused(ctx, &room.UpdatePlayerPausedParams{
		RoomId:   params.RoomId,
		IsPaused: true,
	}); err != nil {
		return PauseVideoResponse{}, fmt.Errorf("failed to update player paused: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return PauseVideoResponse{}, err
	}

	return PauseVideoResponse{Conns: conns}, nil
}

type SetPlaybackRateParams struct {
	RoomId       string
	SenderId     string
	PlaybackRate float64
}

type SetPlaybackRateResponse struct {
	PlaybackRate float64
	Conns        []*websocket.Conn
}

func (s *service) SetPlaybackRate(ctx context.Context, params *SetPlaybackRateParams) (SetPlaybackRateResponse, error) {
	if err := s.checkIfLeader(ctx, params.RoomId, params.SenderId); err != nil {
		return SetPlaybackRateResponse{}, err
	}

	if _, ok := allowedPlaybackRates[params.PlaybackRate]; !ok {
		return SetPlaybackRateResponse{}, ErrInvalidPlaybackRate
	}

	if err := s.roomRepo.UpdatePlayerRate(ctx, &room.UpdatePlayerRateParams{
		RoomId:       params.RoomId,
		PlaybackRate: params.PlaybackRate,
	}); err != nil {
		return SetPlaybackRateResponse{}, fmt.Errorf("failed to update player rate: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return SetPlaybackRateResponse{}, err
	}

	return SetPlaybackRateResponse{
		PlaybackRate: params.PlaybackRate,
		Conns:        conns,
	}, nil
}
