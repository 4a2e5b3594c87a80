package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrNameTooLong = errors.New("display name too long")
	ErrNameEmpty   = errors.New("display name empty")
)

// Member is a participant's signaling-visible state within one room.
// No transport or lifecycle logic here.
type Member struct {
	Name   string
	Audio  bool
	Video  bool
	Screen bool
}

// NewMember avoids raw literals in adapters and keeps defaults obvious:
// a freshly joined participant publishes audio and video, no screen share.
func NewMember(name string) (*Member, error) {
	if name == "" {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrNameTooLong
	}
	return &Member{Name: name, Audio: true, Video: true}, nil
}

// MediaStateChange is a partial update of a member's media flags.
// Nil fields are left unchanged.
type MediaStateChange struct {
	Audio  *bool `json:"audio"`
	Video  *bool `json:"video"`
	Screen *bool `json:"screen"`
}

// Apply mutates m with the non-nil fields of the change.
func (c MediaStateChange) Apply(m *Member) {
	if c.Audio != nil {
		m.Audio = *c.Audio
	}
	if c.Video != nil {
		m.Video = *c.Video
	}
	if c.Screen != nil {
		m.Screen = *c.Screen
	}
}
