package core

import "github.com/svarvel/meethub/internal/domain"

// Frame is a raw encoded payload handed to the transport.
type Frame []byte

// ConnectionID identifies one live transport channel.
// Assigned at connect time, never reused.
type ConnectionID string

// SignalConnection abstracts the messaging transport for one client.
// Owned by the adapter; the adapter must Close() it. TrySend must never
// block: a slow peer loses frames instead of stalling the room.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds a domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

// PresenceEntry is a read-only view of one member for presence
// snapshots and APIs (no transport fields).
type PresenceEntry struct {
	ID     ConnectionID `json:"id"`
	Name   string       `json:"name"`
	Audio  bool         `json:"isAudioEnabled"`
	Video  bool         `json:"isVideoEnabled"`
	Screen bool         `json:"isScreenSharing"`
}

// PublishResult reports delivery stats/backpressure to the router.
type PublishResult struct {
	SentTo  int
	Dropped []ConnectionID
}

// Room is the membership set of one meeting session. Implementations
// serialize all mutations to the room, and the announce callbacks run
// inside that critical section so that any two members observe presence
// updates in the same order. Rooms never close adapter-owned resources.
//
// The announce fan-outs report members whose frame was dropped, so the
// caller can apply its backpressure policy. Announce callbacks
// returning a nil Frame suppress the fan-out.
type Room interface {
	ID() domain.RoomID
	MemberCount() int

	// CloseIfEmpty retires the room when it has no members, in one
	// critical section: every later Join fails with ErrRoomClosed. The
	// directory closes rooms before dropping them so a racing join can
	// never land in an unlisted room.
	CloseIfEmpty() bool
	Closed() bool

	// Snapshot returns the members in join order.
	Snapshot() []PresenceEntry

	// Resolve looks up a current member's session.
	Resolve(id ConnectionID) (MemberSession, bool)

	// Join appends the member and returns the members that were already
	// present, announcing the newcomer to each of them.
	Join(id ConnectionID, ms MemberSession, announce func(existing []PresenceEntry) Frame) (existing []PresenceEntry, dropped []ConnectionID, err error)

	// Leave removes the member, fanning the announce frames out to the
	// remaining members in order. Reports the remaining count and
	// whether the member was present (a second Leave is a no-op).
	Leave(id ConnectionID, announce func(remaining []PresenceEntry) []Frame) (remaining int, dropped []ConnectionID, ok bool)

	// UpdateMember applies a media-state change to the member's own
	// flags and fans the refreshed presence list out to everyone else.
	UpdateMember(id ConnectionID, change domain.MediaStateChange, announce func(members []PresenceEntry) Frame) (dropped []ConnectionID, err error)

	// Broadcast sends the frame to every member except from.
	Broadcast(from ConnectionID, frame Frame) PublishResult

	// Drain sends the frame to every member, closes the room and
	// empties it. Returns the ids that were members.
	Drain(frame Frame) []ConnectionID
}

// RoomInfo is a directory listing entry.
type RoomInfo struct {
	Room        domain.RoomID `json:"room"`
	MemberCount int           `json:"client_count"`
}
