package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
)

type connEntry struct {
	Session core.MemberSession
	Room    domain.RoomID
	Cancel  context.CancelFunc
}

// Registry is the connection registry: it maps a connection id to its
// transport-bound session and current room, if any. It never calls the
// transport itself.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnectionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnectionID]*connEntry)}
}

// Register allocates a fresh connection id for the session. The cancel
// function tears down the connection's pumps when the server kicks it.
func (r *Registry) Register(sess core.MemberSession, cancel context.CancelFunc) core.ConnectionID {
	id := core.ConnectionID(uuid.NewString())
	r.mu.Lock()
	r.conns[id] = &connEntry{Session: sess, Cancel: cancel}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("registered connection")
	return id
}

// Unregister drops the record. Callers must run room-leave cleanup
// first; the router's Disconnect does both in order.
func (r *Registry) Unregister(id core.ConnectionID) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unregistered connection")
}

func (r *Registry) Get(id core.ConnectionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Session, true
	}
	return nil, false
}

// RoomOf reports the room the connection currently occupies.
func (r *Registry) RoomOf(id core.ConnectionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// SetRoom binds the connection to a room. Fails if the connection is
// unknown or already bound elsewhere: a connection belongs to at most
// one room at a time.
func (r *Registry) SetRoom(id core.ConnectionID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return ErrNotAMember
	}
	if e.Room != "" {
		return ErrAlreadyMember
	}
	e.Room = room
	return nil
}

// ClearRoom is idempotent; reports whether a binding was removed.
func (r *Registry) ClearRoom(id core.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.Room == "" {
		return false
	}
	e.Room = ""
	return true
}

// Cancel tears down the connection's pumps, if it is still registered.
func (r *Registry) Cancel(id core.ConnectionID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
