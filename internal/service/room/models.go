package room

type Member struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type Player struct {
	VideoLink    string  `json:"currentVideoLink"`
	CurrentTime  int     `json:"currentTime"`
	IsPaused     bool    `json:"videoPaused"`
	PlaybackRate float64 `json:"currentPlaybackRate"`
}

type Room struct {
	Id      string   `json:"roomID"`
	Members []Member `json:"members"`
	Leader  Member   `json:"leader"`
	Player  Player   `json:"player"`
}

// PlayerSnapshot is what the leader reports back for a late joiner.
type PlayerSnapshot struct {
	CurrentTime  int     `json:"currentTime"`
	IsPaused     bool    `json:"videoPaused"`
	PlaybackRate float64 `json:"currentPlaybackRate"`
}

// MemberMap is the connection id -> display name form of the member list,
// the shape the users-list events carry.
func (r Room) MemberMap() map[string]string {
	m := make(map[string]string, len(r.Members))
	for _, member := range r.Members {
		m[member.Id] = member.Username
	}

	return m
}
