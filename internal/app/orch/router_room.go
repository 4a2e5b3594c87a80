package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/app"
	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
	"github.com/svarvel/meethub/internal/protocol"
	"github.com/svarvel/meethub/internal/store"
)

// Join moves the connection into the room and returns the members that
// were already there, in join order. Existing members each get exactly
// one user-joined event.
func (r *Router) Join(ctx context.Context, id core.ConnectionID, roomID domain.RoomID, name string) ([]core.PresenceEntry, error) {
	if _, ok := r.Registry.RoomOf(id); ok {
		return nil, app.ErrAlreadyMember
	}
	if err := r.Admission.Allow(ctx, roomID); err != nil {
		return nil, err
	}
	sess, ok := r.Registry.Get(id)
	if !ok {
		return nil, app.ErrNotAMember
	}
	if name != "" {
		if len(name) > domain.MaxDisplayNameLen {
			name = name[:domain.MaxDisplayNameLen]
		}
		sess.Meta().Name = name
	}
	if err := r.Registry.SetRoom(id, roomID); err != nil {
		return nil, err
	}
	announce := func([]core.PresenceEntry) core.Frame {
		return encode(protocol.UserJoined{
			Type: protocol.TypeUserJoined,
			ID:   id,
			Name: sess.Meta().Name,
		})
	}
	for {
		room := r.Rooms.Ensure(roomID)
		existing, dropped, err := room.Join(id, sess, announce)
		if errors.Is(err, core.ErrRoomClosed) {
			// Lost the race against the room's retirement; Ensure
			// replaces a closed room with a fresh one.
			continue
		}
		if err != nil {
			r.Registry.ClearRoom(id)
			return nil, app.ErrAlreadyMember
		}
		// A concurrent kick may have cleared the binding before the
		// room add landed. Undo, or the member would be unreachable
		// for every later cleanup.
		if bound, ok := r.Registry.RoomOf(id); !ok || bound != roomID {
			room.Leave(id, r.leaveFrames(id, roomID))
			r.Rooms.RemoveIfEmpty(roomID)
			return nil, app.ErrNotAMember
		}
		r.applyBackpressure(room, dropped)
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(roomID)).Msg("joined room")
		return existing, nil
	}
}

// leaveFrames builds the announce closure shared by every departure
// path: user-left plus the refreshed presence list.
func (r *Router) leaveFrames(id core.ConnectionID, roomID domain.RoomID) func([]core.PresenceEntry) []core.Frame {
	return func(remaining []core.PresenceEntry) []core.Frame {
		return []core.Frame{
			encode(protocol.UserLeft{Type: protocol.TypeUserLeft, ID: id}),
			encode(protocol.Participants{Type: protocol.TypeParticipants, Room: roomID, Members: remaining}),
		}
	}
}

// Leave removes the connection from its room and announces user-left
// plus a refreshed presence list to the remaining members. Idempotent:
// the registry binding is the at-most-once gate for cleanup.
func (r *Router) Leave(id core.ConnectionID) error {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return app.ErrNotAMember
	}
	if !r.Registry.ClearRoom(id) {
		return app.ErrNotAMember
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return nil
	}
	_, dropped, _ := room.Leave(id, r.leaveFrames(id, roomID))
	r.Rooms.RemoveIfEmpty(roomID)
	r.applyBackpressure(room, dropped)
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(roomID)).Msg("left room")
	return nil
}

// SetMediaState updates the sender's own flags; a connection can never
// mutate another member's state. Everyone else gets the new snapshot.
func (r *Router) SetMediaState(id core.ConnectionID, change domain.MediaStateChange) error {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return app.ErrNotAMember
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return app.ErrNotAMember
	}
	dropped, err := room.UpdateMember(id, change, func(members []core.PresenceEntry) core.Frame {
		return encode(protocol.Participants{Type: protocol.TypeParticipants, Room: roomID, Members: members})
	})
	if errors.Is(err, core.ErrNoSuchMember) {
		return app.ErrNotAMember
	}
	if err != nil {
		return err
	}
	r.applyBackpressure(room, dropped)
	return nil
}

// EndMeeting force-leaves every member of the sender's room, sender
// included, and soft-ends the stored meeting record when one exists.
// Any member may end the meeting; restricting this to a host is a
// deployment decision left to the integrator.
func (r *Router) EndMeeting(ctx context.Context, id core.ConnectionID) error {
	roomID, ok := r.Registry.RoomOf(id)
	if !ok {
		return app.ErrNotAMember
	}
	room, ok := r.Rooms.Get(roomID)
	if !ok {
		return app.ErrNotAMember
	}
	frame := encode(protocol.MeetingEnded{Type: protocol.TypeMeetingEnded, Room: roomID})
	ids := room.Drain(frame)
	for _, sid := range ids {
		r.Registry.ClearRoom(sid)
	}
	r.Rooms.Remove(roomID)
	log.Info().Str("module", "orch").Str("room", string(roomID)).Int("members", len(ids)).Msg("meeting ended")

	if r.Meetings != nil {
		if err := r.Meetings.End(ctx, string(roomID)); err != nil && !errors.Is(err, store.ErrMeetingNotFound) {
			log.Error().Str("module", "orch").Str("room", string(roomID)).Err(err).Msg("mark meeting ended")
		}
	}
	return nil
}

// Disconnect is the transport-fault path: an implicit leave followed by
// registry removal. Cleanup is unconditional and idempotent; a tab
// close must never leave a stale member behind.
func (r *Router) Disconnect(id core.ConnectionID) {
	if err := r.Leave(id); err != nil && !errors.Is(err, app.ErrNotAMember) {
		log.Error().Str("module", "orch").Str("conn", string(id)).Err(err).Msg("disconnect cleanup")
	}
	r.Registry.Unregister(id)
}
