package room

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyInRoom  = errors.New("member is already in a room")
	ErrMemberNotFound = errors.New("member not found")
)
