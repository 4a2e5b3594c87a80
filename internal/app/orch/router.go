// Package orch wires the registry, the room directory and the policies
// into the signaling state machine. Every inbound event lands here; the
// adapters only decode and dispatch.
package orch

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/app"
	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/protocol"
	"github.com/svarvel/meethub/internal/store"
)

type Router struct {
	Registry  *app.Registry
	Rooms     *app.Directory
	Admission app.JoinPolicy
	Policy    app.Policy
	Meetings  store.MeetingStore // optional; end-meeting soft-ends the record
}

// RelayOffer forwards a session offer to exactly one peer in the
// sender's room.
func (r *Router) RelayOffer(id core.ConnectionID, target core.ConnectionID, sdp webrtc.SessionDescription) error {
	return r.relayTo(id, target, protocol.IncomingSDP{
		Type: protocol.TypeIncomingOffer,
		From: id,
		SDP:  sdp,
	})
}

func (r *Router) RelayAnswer(id core.ConnectionID, target core.ConnectionID, sdp webrtc.SessionDescription) error {
	return r.relayTo(id, target, protocol.IncomingSDP{
		Type: protocol.TypeIncomingAnswer,
		From: id,
		SDP:  sdp,
	})
}

func (r *Router) RelayCandidate(id core.ConnectionID, target core.ConnectionID, cand webrtc.ICECandidateInit) error {
	return r.relayTo(id, target, protocol.IncomingCandidate{
		Type:      protocol.TypeIncomingCandidate,
		From:      id,
		Candidate: cand,
	})
}

// relayTo validates that the target currently shares a room with the
// sender, then delivers point-to-point. Negotiation can involve many
// candidates per pair; nothing here is broadcast.
func (r *Router) relayTo(id core.ConnectionID, target core.ConnectionID, event any) error {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return app.ErrNotAMember
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return app.ErrNotAMember
	}
	ms, ok := room.Resolve(target)
	if !ok {
		return app.ErrTargetNotFound
	}
	frame := encode(event)
	if frame == nil {
		return nil
	}
	if err := ms.Signal().TrySend(frame); err != nil {
		log.Warn().Str("module", "orch").Str("conn", string(target)).Err(err).Msg("relay dropped")
		r.applyBackpressure(room, []core.ConnectionID{target})
	}
	return nil
}

// Chat fans a text message out to everyone else in the sender's room.
// Messages are never persisted.
func (r *Router) Chat(id core.ConnectionID, content string) error {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return app.ErrNotAMember
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return app.ErrNotAMember
	}
	sender := "unknown"
	if ms, ok := room.Resolve(id); ok {
		sender = ms.Meta().Name
	}
	frame := encode(protocol.NewChatMessage(sender, content))
	if frame == nil {
		return nil
	}
	res := room.Broadcast(id, frame)
	r.applyBackpressure(room, res.Dropped)
	return nil
}

func (r *Router) applyBackpressure(room core.Room, dropped []core.ConnectionID) {
	if r.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch r.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(slow)).Msg("kicking slow member")
			if err := r.Leave(slow); err != nil {
				log.Debug().Str("module", "orch").Str("conn", string(slow)).Err(err).Msg("kick: already gone")
			}
			// Tearing the pumps down finishes the cleanup through the
			// transport's disconnect path.
			r.Registry.Cancel(slow)
		case app.NoAction, app.DropFrame:
		}
	}
}

// encode marshals an outbound event, logging instead of failing: a
// frame that cannot be built is treated like a dropped send.
func encode(v any) core.Frame {
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Str("module", "orch").Err(err).Msg("encode event")
		return nil
	}
	return frame
}
