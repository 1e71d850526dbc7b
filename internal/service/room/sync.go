package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type BeginSyncParams struct {
	RoomId      string
	RequesterId string
}

type BeginSyncResponse struct {
	SyncId     string
	LeaderConn *websocket.Conn
}

// BeginSync opens a pending initial-sync request on behalf of a follower
// whose player just became ready. The caller forwards a state request to the
// returned leader connection, then blocks in AwaitSync.
func (s *service) BeginSync(ctx context.Context, params *BeginSyncParams) (BeginSyncResponse, error) {
	r, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return BeginSyncResponse{}, err
	}

	isMember := false
	for _, member := range r.Members {
		if member.Id == params.RequesterId {
			isMember = true
			break
		}
	}
	if !isMember {
		return BeginSyncResponse{}, ErrSyncUnavailable
	}

	// the leader's own player is already authoritative
	if r.LeaderId == params.RequesterId {
		return BeginSyncResponse{}, ErrSyncUnavailable
	}

	leaderConn, err := s.connRepo.GetConn(r.LeaderId)
	if err != nil {
		return BeginSyncResponse{}, ErrSyncUnavailable
	}

	syncId := uuid.NewString()

	s.syncMu.Lock()
	s.pendingSyncs[syncId] = &pendingSync{
		ch:       make(chan PlayerSnapshot, 1),
		leaderId: r.LeaderId,
	}
	s.syncMu.Unlock()

	return BeginSyncResponse{
		SyncId:     syncId,
		LeaderConn: leaderConn,
	}, nil
}

// AwaitSync blocks until the leader answers, the server-side deadline
// passes, or the caller's context ends. The pending entry is always gone
// afterwards, so a reply landing later finds nothing and is dropped.
func (s *service) AwaitSync(ctx context.Context, syncId string) (PlayerSnapshot, error) {
	s.syncMu.Lock()
	pending, ok := s.pendingSyncs[syncId]
	s.syncMu.Unlock()
	if !ok {
		return PlayerSnapshot{}, ErrSyncUnavailable
	}
	defer s.removePendingSync(syncId)

	timer := time.NewTimer(s.syncTimeout)
	defer timer.Stop()

	select {
	case snapshot := <-pending.ch:
		return snapshot, nil
	case <-timer.C:
		return PlayerSnapshot{}, ErrSyncTimeout
	case <-ctx.Done():
		return PlayerSnapshot{}, ctx.Err()
	}
}

type ResolveSyncParams struct {
	SyncId   string
	SenderId string
	Snapshot PlayerSnapshot
}

// ResolveSync delivers the leader's snapshot to the waiting requester.
// Replies for unknown sync ids (timed out, duplicate, requester gone) and
// replies from anyone but the leader the request was sent to are ignored.
func (s *service) ResolveSync(ctx context.Context, params *ResolveSyncParams) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	pending, ok := s.pendingSyncs[params.SyncId]
	if !ok {
		s.logger.DebugContext(ctx, "discarding late sync reply", "sync_id", params.SyncId)
		return
	}

	if pending.leaderId != params.SenderId {
		s.logger.WarnContext(ctx, "sync reply from non-leader", "sync_id", params.SyncId, "sender_id", params.SenderId)
		return
	}

	if pending.resolved {
		s.logger.DebugContext(ctx, "discarding duplicate sync reply", "sync_id", params.SyncId)
		return
	}
	pending.resolved = true
	pending.ch <- params.Snapshot
}

// CancelSync abandons a pending request whose state request never reached
// the leader, so the entry cannot wait for an answer that will not come.
func (s *service) CancelSync(syncId string) {
	s.removePendingSync(syncId)
}

func (s *service) removePendingSync(syncId string) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	delete(s.pendingSyncs, syncId)
}
