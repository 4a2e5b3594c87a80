package app

import "errors"

// Protocol errors reported back to the offending connection. All are
// recoverable; the connection stays usable.
var (
	ErrAlreadyMember  = errors.New("connection already in a room")
	ErrNotAMember     = errors.New("connection not in a room")
	ErrRoomNotFound   = errors.New("room not found")
	ErrTargetNotFound = errors.New("target is not a member of this room")
)
