package controller

import (
	"github.com/vidroom/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(c.handleWSError)

	// lifecycle
	mux.Handle("new-user", c.handleNewUser)
	mux.Handle("create-room", c.handleCreateRoom)
	mux.Handle("join-room", c.handleJoinRoom)
	mux.Handle("user-leaves-room", c.handleLeaveRoom)

	// leadership
	mux.Handle("roomLeader-changeRequest", c.handleLeaderChangeRequest)

	// chat
	mux.Handle("sendMessage", c.handleSendMessage)

	// playback
	mux.Handle("videoLink-set", c.handleSetVideoLink)
	mux.Handle("set-videoTime", c.handleSetVideoTime)
	mux.Handle("play-video", c.handlePlayVideo)
	mux.Handle("pause-video", c.handlePauseVideo)
	mux.Handle("set-playbackRate", c.handleSetPlaybackRate)

	// late-join sync
	mux.Handle("request-initial-sync", c.handleRequestInitialSync)
	mux.Handle("initial-sync-state", c.handleInitialSyncState)

	return mux
}
