package orch

import (
	"github.com/svarvel/meethub/internal/app"
	"github.com/svarvel/meethub/internal/domain"
	"github.com/svarvel/meethub/internal/protocol"
)

// BroadcastPresence recomputes the room's member snapshot and sends it
// to every current member. Membership and flag changes announce inside
// the room's critical section already; this entry point exists for
// callers outside the event flow (admin surfaces, reconcilers).
func (r *Router) BroadcastPresence(roomID domain.RoomID) error {
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return app.ErrRoomNotFound
	}
	frame := encode(protocol.Participants{
		Type:    protocol.TypeParticipants,
		Room:    roomID,
		Members: room.Snapshot(),
	})
	if frame == nil {
		return nil
	}
	res := room.Broadcast("", frame)
	r.applyBackpressure(room, res.Dropped)
	return nil
}
