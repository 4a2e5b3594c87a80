package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/domain"
)

// ErrMemberExists reports a join by a connection already in the room.
var ErrMemberExists = errors.New("already a room member")

// ErrNoSuchMember reports an update for a connection not in the room.
var ErrNoSuchMember = errors.New("not a room member")

// ErrRoomClosed reports a join against a room the directory has already
// retired. Callers re-fetch the room and try again.
var ErrRoomClosed = errors.New("room closed")

// roomImpl is a threadsafe in-memory room. Join order is preserved so
// presence snapshots are deterministic for every observer.
type roomImpl struct {
	id     domain.RoomID
	mu     sync.RWMutex
	order  []ConnectionID
	bySID  map[ConnectionID]MemberSession
	closed bool
}

func NewRoom(id domain.RoomID) Room {
	return &roomImpl{
		id:    id,
		bySID: make(map[ConnectionID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) CloseIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bySID) > 0 {
		return false
	}
	r.closed = true
	return true
}

func (r *roomImpl) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *roomImpl) Snapshot() []PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *roomImpl) snapshotLocked() []PresenceEntry {
	out := make([]PresenceEntry, 0, len(r.order))
	for _, sid := range r.order {
		ms := r.bySID[sid]
		m := ms.Meta()
		out = append(out, PresenceEntry{
			ID:     sid,
			Name:   m.Name,
			Audio:  m.Audio,
			Video:  m.Video,
			Screen: m.Screen,
		})
	}
	return out
}

func (r *roomImpl) Resolve(id ConnectionID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.bySID[id]
	return ms, ok
}

func (r *roomImpl) Join(id ConnectionID, ms MemberSession, announce func([]PresenceEntry) Frame) ([]PresenceEntry, []ConnectionID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrRoomClosed
	}
	if _, ok := r.bySID[id]; ok {
		return nil, nil, ErrMemberExists
	}
	existing := r.snapshotLocked()
	r.bySID[id] = ms
	r.order = append(r.order, id)
	var dropped []ConnectionID
	if announce != nil {
		if frame := announce(existing); frame != nil {
			for _, e := range existing {
				if !r.trySendLocked(e.ID, frame) {
					dropped = append(dropped, e.ID)
				}
			}
		}
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Msg("member added")
	return existing, dropped, nil
}

func (r *roomImpl) Leave(id ConnectionID, announce func([]PresenceEntry) []Frame) (int, []ConnectionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[id]; !ok {
		return len(r.bySID), nil, false
	}
	delete(r.bySID, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	remaining := r.snapshotLocked()
	var dropped []ConnectionID
	if announce != nil {
		for _, frame := range announce(remaining) {
			if frame == nil {
				continue
			}
			for _, e := range remaining {
				if !r.trySendLocked(e.ID, frame) {
					dropped = append(dropped, e.ID)
				}
			}
		}
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Msg("member removed")
	return len(r.bySID), dropped, true
}

func (r *roomImpl) UpdateMember(id ConnectionID, change domain.MediaStateChange, announce func([]PresenceEntry) Frame) ([]ConnectionID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[id]
	if !ok {
		return nil, ErrNoSuchMember
	}
	change.Apply(ms.Meta())
	var dropped []ConnectionID
	if announce != nil {
		if frame := announce(r.snapshotLocked()); frame != nil {
			for _, sid := range r.order {
				if sid == id {
					continue
				}
				if !r.trySendLocked(sid, frame) {
					dropped = append(dropped, sid)
				}
			}
		}
	}
	return dropped, nil
}

func (r *roomImpl) Broadcast(from ConnectionID, frame Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, sid := range r.order {
		if sid == from {
			continue
		}
		if err := r.bySID[sid].Signal().TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Drain also closes the room: once a meeting ends, late joiners must
// land in a fresh room object, never this one.
func (r *roomImpl) Drain(frame Frame) []ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	ids := make([]ConnectionID, len(r.order))
	copy(ids, r.order)
	if frame != nil {
		for _, sid := range r.order {
			r.trySendLocked(sid, frame)
		}
	}
	r.order = nil
	r.bySID = make(map[ConnectionID]MemberSession)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Int("members", len(ids)).Msg("room drained")
	return ids
}

// trySendLocked delivers best-effort under the room lock. TrySend is
// non-blocking, so holding the lock here is safe.
func (r *roomImpl) trySendLocked(id ConnectionID, frame Frame) bool {
	ms, ok := r.bySID[id]
	if !ok {
		return true
	}
	return ms.Signal().TrySend(frame) == nil
}
