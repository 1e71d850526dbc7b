package room

type Member struct {
	Id       string
	Username string
}

type Player struct {
	VideoLink    string
	CurrentTime  int
	IsPaused     bool
	PlaybackRate float64
}

// Room is a read snapshot. Members are in join order. LeaderId is always the
// id of one of Members while the room is alive.
type Room struct {
	Id       string
	Members  []Member
	LeaderId string
	Player   Player
}
