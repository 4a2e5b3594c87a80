package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
)

// Directory is the room directory: it owns every live room. A room
// exists exactly as long as it has members; RemoveIfEmpty enforces the
// zero-member deletion invariant.
type Directory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.Room
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[domain.RoomID]core.Room)}
}

// Ensure returns the live room or creates an empty one. A closed room
// is replaced: callers holding its reference see their join fail and
// re-fetch.
func (d *Directory) Ensure(id domain.RoomID) core.Room {
	d.mu.RLock()
	room, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok && !room.Closed() {
		return room
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if room, ok = d.rooms[id]; ok && !room.Closed() {
		return room
	}
	room = core.NewRoom(id)
	d.rooms[id] = room
	log.Info().Str("module", "app.directory").Str("room", string(id)).Msg("room created")
	return room
}

func (d *Directory) Get(id domain.RoomID) (core.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[id]
	return room, ok
}

// RemoveIfEmpty deletes the room once its last member is gone. The
// emptiness check and the close are one room critical section, so a
// join racing the last leave either lands before the close or fails
// against the closed room and recreates it.
func (d *Directory) RemoveIfEmpty(id domain.RoomID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[id]
	if !ok || !room.CloseIfEmpty() {
		return false
	}
	delete(d.rooms, id)
	log.Info().Str("module", "app.directory").Str("room", string(id)).Msg("room deleted (empty)")
	return true
}

// Remove drops a drained room's entry (end-meeting path). Drain closed
// the room already; this only unlists it. A live room under the same
// id is left alone: a racing join may have recreated it.
func (d *Directory) Remove(id domain.RoomID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[id]
	if !ok || !room.Closed() {
		return
	}
	delete(d.rooms, id)
	log.Info().Str("module", "app.directory").Str("room", string(id)).Msg("room deleted")
}

func (d *Directory) List() []core.RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(d.rooms))
	for id, r := range d.rooms {
		out = append(out, core.RoomInfo{Room: id, MemberCount: r.MemberCount()})
	}
	return out
}
