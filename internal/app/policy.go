package app

import (
	"context"
	"fmt"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
	"github.com/svarvel/meethub/internal/store"
)

// JoinPolicy decides whether a room id may be joined. The signaling
// core supports both ad hoc rooms and rooms backed by a meeting record;
// which one a deployment gets is wired at startup, not hard-coded.
type JoinPolicy interface {
	Allow(ctx context.Context, id domain.RoomID) error
}

// AdHocRooms treats any room id as joinable.
type AdHocRooms struct{}

func (AdHocRooms) Allow(context.Context, domain.RoomID) error { return nil }

// RequireMeeting admits only rooms with an active meeting record.
type RequireMeeting struct {
	Store store.MeetingStore
}

func (p RequireMeeting) Allow(ctx context.Context, id domain.RoomID) error {
	ok, err := p.Store.Exists(ctx, string(id))
	if err != nil {
		return fmt.Errorf("meeting lookup: %w", err)
	}
	if !ok {
		return ErrRoomNotFound
	}
	return nil
}

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose outbound queue
// overflowed during a broadcast.
type Policy interface {
	OnBackPressure(room core.Room, id core.ConnectionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.Room, core.ConnectionID) BackpressureAction {
	return KickMember
}
