package room

type CreateRoomParams struct {
	OwnerId       string
	OwnerUsername string
}

type AddMemberParams struct {
	RoomId   string
	MemberId string
	Username string
}

type RemoveMemberParams struct {
	RoomId   string
	MemberId string
}

type RemoveMemberResult struct {
	// NewLeader is set when the removed member was the leader and members
	// remain; the earliest-joined remaining member gets promoted.
	NewLeader *Member
	Deleted   bool
}

type SetLeaderParams struct {
	RoomId   string
	MemberId string
}

type UpdatePlayerLinkParams struct {
	RoomId    string
	VideoLink string
}

type UpdatePlayerTimeParams struct {
	RoomId      string
	CurrentTime int
}

type UpdatePlayerPausedParams struct {
	RoomId   string
	IsPaused bool
}

type UpdatePlayerRateParams struct {
	RoomId       string
	PlaybackRate float64
}
