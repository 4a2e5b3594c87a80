package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const roomCodeLength = 12

// Meeting is the stored metadata record behind a room code.
// The signaling core only consults it through the store interface;
// rooms themselves live and die with their members.
type Meeting struct {
	Code      string     `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	Active    bool       `bson:"active" json:"active"`
	EndedAt   *time.Time `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
}

func NewMeeting(name string) *Meeting {
	return &Meeting{
		Code:      GenerateRoomCode(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
}

// GenerateRoomCode produces a short shareable room code.
func GenerateRoomCode() string {
	code := strings.ReplaceAll(uuid.NewString(), "-", "")
	return code[:roomCodeLength]
}
