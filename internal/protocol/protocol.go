// Package protocol defines the JSON wire format of the signaling
// channel. Every message, inbound or outbound, carries a "type"
// discriminator; the rest of the fields are type-specific.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
)

// Inbound event names.
const (
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeCandidate  = "candidate"
	TypeMediaState = "media-state"
	TypeChat       = "chat"
	TypeEndMeeting = "end-meeting"
	TypePing       = "ping"
)

// Outbound event names.
const (
	TypeWelcome           = "welcome"
	TypeRoomState         = "room-state"
	TypeUserJoined        = "user-joined"
	TypeUserLeft          = "user-left"
	TypeIncomingOffer     = "incoming-offer"
	TypeIncomingAnswer    = "incoming-answer"
	TypeIncomingCandidate = "incoming-candidate"
	TypeParticipants      = "participants"
	TypeChatMessage       = "chat-message"
	TypeMeetingEnded      = "meeting-ended"
	TypeLeft              = "left"
	TypePong              = "pong"
	TypeError             = "error"
)

// Error codes carried by the error event.
const (
	CodeAlreadyMember  = "already_member"
	CodeNotAMember     = "not_a_member"
	CodeRoomNotFound   = "room_not_found"
	CodeTargetNotFound = "target_not_found"
	CodeBadPayload     = "bad_payload"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal_error"
)

// Envelope is the minimal decode used to dispatch inbound messages.
type Envelope struct {
	Type string `json:"type"`
}

// JoinRequest asks to enter a room under a display name.
type JoinRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Name string `json:"name,omitempty"`
}

// SDPRequest carries an offer or answer for one target peer. The
// session description nests under "sdp" so its own "type" field
// ("offer"/"answer") does not collide with the envelope discriminator.
type SDPRequest struct {
	Type   string                    `json:"type"`
	Target string                    `json:"target"`
	SDP    webrtc.SessionDescription `json:"sdp"`
}

// CandidateRequest carries one ICE candidate for one target peer.
type CandidateRequest struct {
	Type      string                  `json:"type"`
	Target    string                  `json:"target"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// MediaStateRequest updates the sender's own media flags.
type MediaStateRequest struct {
	Type string `json:"type"`
	domain.MediaStateChange
}

// ChatRequest is an in-room text message; never persisted.
type ChatRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type Welcome struct {
	Type string            `json:"type"`
	ID   core.ConnectionID `json:"id"`
}

// RoomState is the join acknowledgement: who was already here.
type RoomState struct {
	Type    string               `json:"type"`
	Room    domain.RoomID        `json:"room"`
	Members []core.PresenceEntry `json:"members"`
	Count   int                  `json:"count"`
}

type UserJoined struct {
	Type string            `json:"type"`
	ID   core.ConnectionID `json:"id"`
	Name string            `json:"name"`
}

type UserLeft struct {
	Type string            `json:"type"`
	ID   core.ConnectionID `json:"id"`
}

// IncomingSDP relays an offer or answer to its target.
type IncomingSDP struct {
	Type string                    `json:"type"`
	From core.ConnectionID         `json:"from"`
	SDP  webrtc.SessionDescription `json:"sdp"`
}

type IncomingCandidate struct {
	Type      string                  `json:"type"`
	From      core.ConnectionID       `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// Participants is the presence snapshot, in join order.
type Participants struct {
	Type    string               `json:"type"`
	Room    domain.RoomID        `json:"room"`
	Members []core.PresenceEntry `json:"members"`
}

type ChatMessage struct {
	Type      string    `json:"type"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage stamps the message with the server clock; clients
// never supply their own timestamps.
func NewChatMessage(sender, content string) ChatMessage {
	return ChatMessage{
		Type:      TypeChatMessage,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

type MeetingEnded struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Encode marshals an outbound event into a transport frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
