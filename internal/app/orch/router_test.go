package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/svarvel/meethub/internal/app"
	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
	"github.com/svarvel/meethub/internal/store"
)

// fakeConn records every frame instead of writing to a socket.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// events decodes the recorded frames with the given type, in order.
func (f *fakeConn) events(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func newTestRouter() *Router {
	return &Router{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewDirectory(),
		Admission: app.AdHocRooms{},
		Policy:    app.SimplePolicy{},
	}
}

func connect(t *testing.T, r *Router) (core.ConnectionID, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	meta, err := domain.NewMember("guest")
	if err != nil {
		t.Fatal(err)
	}
	id := r.Registry.Register(core.NewMemberSession(meta, conn), nil)
	return id, conn
}

func mustJoin(t *testing.T, r *Router, id core.ConnectionID, room, name string) []core.PresenceEntry {
	t.Helper()
	existing, err := r.Join(context.Background(), id, domain.RoomID(room), name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return existing
}

func TestJoinOrdering(t *testing.T) {
	r := newTestRouter()
	a, connA := connect(t, r)
	b, connB := connect(t, r)
	c, connC := connect(t, r)

	if existing := mustJoin(t, r, a, "abcd", "alice"); len(existing) != 0 {
		t.Fatalf("first joiner saw %d members, want 0", len(existing))
	}
	existing := mustJoin(t, r, b, "abcd", "bob")
	if len(existing) != 1 || existing[0].ID != a || existing[0].Name != "alice" {
		t.Fatalf("second joiner saw %+v, want [alice]", existing)
	}
	existing = mustJoin(t, r, c, "abcd", "carol")
	if len(existing) != 2 || existing[0].ID != a || existing[1].ID != b {
		t.Fatalf("third joiner saw %+v, want [alice bob] in join order", existing)
	}

	joinedAtA := connA.events(t, "user-joined")
	if len(joinedAtA) != 2 || joinedAtA[0]["id"] != string(b) || joinedAtA[1]["id"] != string(c) {
		t.Fatalf("alice got user-joined %+v, want bob then carol", joinedAtA)
	}
	if got := connB.events(t, "user-joined"); len(got) != 1 || got[0]["id"] != string(c) {
		t.Fatalf("bob got user-joined %+v, want exactly carol", got)
	}
	if got := connC.events(t, "user-joined"); len(got) != 0 {
		t.Fatalf("carol got user-joined %+v, want none", got)
	}
}

func TestJoinWhileInRoom(t *testing.T) {
	r := newTestRouter()
	a, _ := connect(t, r)
	mustJoin(t, r, a, "abcd", "alice")

	if _, err := r.Join(context.Background(), a, "other", "alice"); !errors.Is(err, app.ErrAlreadyMember) {
		t.Fatalf("second join err = %v, want ErrAlreadyMember", err)
	}
}

func TestJoinAdmission(t *testing.T) {
	meetings := store.NewMemory()
	r := newTestRouter()
	r.Admission = app.RequireMeeting{Store: meetings}

	a, _ := connect(t, r)
	if _, err := r.Join(context.Background(), a, "nope", "alice"); !errors.Is(err, app.ErrRoomNotFound) {
		t.Fatalf("join unknown room err = %v, want ErrRoomNotFound", err)
	}

	m, err := meetings.Create(context.Background(), "standup")
	if err != nil {
		t.Fatal(err)
	}
	mustJoin(t, r, a, m.Code, "alice")
}

func TestRelayTargeting(t *testing.T) {
	r := newTestRouter()
	a, _ := connect(t, r)
	b, connB := connect(t, r)
	c, connC := connect(t, r)
	d, _ := connect(t, r)

	mustJoin(t, r, a, "abcd", "alice")
	mustJoin(t, r, b, "abcd", "bob")
	mustJoin(t, r, c, "abcd", "carol")
	mustJoin(t, r, d, "elsewhere", "dave")

	sdp := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
	if err := r.RelayOffer(a, b, sdp); err != nil {
		t.Fatalf("relay offer: %v", err)
	}

	offers := connB.events(t, "incoming-offer")
	if len(offers) != 1 || offers[0]["from"] != string(a) {
		t.Fatalf("bob got offers %+v, want one from alice", offers)
	}
	if got := connC.events(t, "incoming-offer"); len(got) != 0 {
		t.Fatalf("carol got offers %+v, want none", got)
	}

	// A member of another room is not a valid target.
	if err := r.RelayOffer(a, d, sdp); !errors.Is(err, app.ErrTargetNotFound) {
		t.Fatalf("relay to other-room peer err = %v, want ErrTargetNotFound", err)
	}
	if err := r.RelayAnswer(a, "ghost", sdp); !errors.Is(err, app.ErrTargetNotFound) {
		t.Fatalf("relay to unknown peer err = %v, want ErrTargetNotFound", err)
	}
	if err := r.RelayCandidate(d, a, webrtc.ICECandidateInit{Candidate: "candidate:1"}); !errors.Is(err, app.ErrTargetNotFound) {
		t.Fatalf("cross-room candidate err = %v, want ErrTargetNotFound", err)
	}

	// Relaying before any join is rejected, not crashed.
	e, _ := connect(t, r)
	if err := r.RelayOffer(e, a, sdp); !errors.Is(err, app.ErrNotAMember) {
		t.Fatalf("relay before join err = %v, want ErrNotAMember", err)
	}
}

func TestLeaveIdempotent(t *testing.T) {
	r := newTestRouter()
	a, _ := connect(t, r)
	b, connB := connect(t, r)
	mustJoin(t, r, a, "abcd", "alice")
	mustJoin(t, r, b, "abcd", "bob")

	if err := r.Leave(a); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := r.Leave(a); !errors.Is(err, app.ErrNotAMember) {
		t.Fatalf("second leave err = %v, want ErrNotAMember", err)
	}

	if got := connB.events(t, "user-left"); len(got) != 1 || got[0]["id"] != string(a) {
		t.Fatalf("bob got user-left %+v, want exactly one for alice", got)
	}
}

func TestRoomLifecycle(t *testing.T) {
	r := newTestRouter()
	a, _ := connect(t, r)

	mustJoin(t, r, a, "abcd", "alice")
	if _, ok := r.Rooms.Get("abcd"); !ok {
		t.Fatal("room missing after join")
	}

	if err := r.Leave(a); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok := r.Rooms.Get("abcd"); ok {
		t.Fatal("room survived its last member")
	}

	// A new join recreates it empty-then-one.
	if existing := mustJoin(t, r, a, "abcd", "alice"); len(existing) != 0 {
		t.Fatalf("recreated room had members %+v", existing)
	}
}

func TestMediaStateAndDisconnect(t *testing.T) {
	r := newTestRouter()
	a, _ := connect(t, r)
	b, connB := connect(t, r)
	mustJoin(t, r, a, "abcd", "alice")
	mustJoin(t, r, b, "abcd", "bob")

	off := false
	if err := r.SetMediaState(a, domain.MediaStateChange{Video: &off}); err != nil {
		t.Fatalf("media state: %v", err)
	}

	snaps := connB.events(t, "participants")
	if len(snaps) == 0 {
		t.Fatal("bob got no presence snapshot")
	}
	members := snaps[len(snaps)-1]["members"].([]any)
	if len(members) != 2 {
		t.Fatalf("snapshot has %d members, want 2", len(members))
	}
	alice := members[0].(map[string]any)
	bob := members[1].(map[string]any)
	if alice["id"] != string(a) || alice["isVideoEnabled"] != false || alice["isAudioEnabled"] != true {
		t.Fatalf("alice entry wrong: %+v", alice)
	}
	if bob["isVideoEnabled"] != true || bob["isAudioEnabled"] != true {
		t.Fatalf("bob flags changed: %+v", bob)
	}

	// Media-state before join is rejected.
	c, _ := connect(t, r)
	if err := r.SetMediaState(c, domain.MediaStateChange{Audio: &off}); !errors.Is(err, app.ErrNotAMember) {
		t.Fatalf("media state without room err = %v, want ErrNotAMember", err)
	}

	// Transport loss behaves like leave.
	r.Disconnect(a)
	if got := connB.events(t, "user-left"); len(got) != 1 || got[0]["id"] != string(a) {
		t.Fatalf("bob got user-left %+v, want alice", got)
	}
	room, ok := r.Rooms.Get("abcd")
	if !ok || room.MemberCount() != 1 {
		t.Fatal("room should survive with exactly bob")
	}
	if _, ok := r.Registry.Get(a); ok {
		t.Fatal("disconnected connection still registered")
	}

	// A later joiner sees only bob.
	cc, _ := connect(t, r)
	existing := mustJoin(t, r, cc, "abcd", "carol")
	if len(existing) != 1 || existing[0].ID != b {
		t.Fatalf("carol saw %+v, want [bob]", existing)
	}
}

func TestChatFanout(t *testing.T) {
	r := newTestRouter()
	a, connA := connect(t, r)
	b, connB := connect(t, r)
	c, connC := connect(t, r)
	mustJoin(t, r, a, "abcd", "alice")
	mustJoin(t, r, b, "abcd", "bob")
	mustJoin(t, r, c, "abcd", "carol")

	if err := r.Chat(a, "hello"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	for name, conn := range map[string]*fakeConn{"bob": connB, "carol": connC} {
		got := conn.events(t, "chat-message")
		if len(got) != 1 || got[0]["sender"] != "alice" || got[0]["content"] != "hello" {
			t.Fatalf("%s got chat %+v", name, got)
		}
		if got[0]["timestamp"] == "" {
			t.Fatalf("%s chat missing server timestamp", name)
		}
	}
	if got := connA.events(t, "chat-message"); len(got) != 0 {
		t.Fatalf("sender echoed own chat: %+v", got)
	}

	d, _ := connect(t, r)
	if err := r.Chat(d, "hi"); !errors.Is(err, app.ErrNotAMember) {
		t.Fatalf("chat without room err = %v, want ErrNotAMember", err)
	}
}

func TestEndMeeting(t *testing.T) {
	meetings := store.NewMemory()
	m, err := meetings.Create(context.Background(), "retro")
	if err != nil {
		t.Fatal(err)
	}

	r := newTestRouter()
	r.Meetings = meetings
	a, connA := connect(t, r)
	b, connB := connect(t, r)
	mustJoin(t, r, a, m.Code, "alice")
	mustJoin(t, r, b, m.Code, "bob")

	// Any member may end, not just the first joiner.
	if err := r.EndMeeting(context.Background(), b); err != nil {
		t.Fatalf("end meeting: %v", err)
	}

	for name, conn := range map[string]*fakeConn{"alice": connA, "bob": connB} {
		if got := conn.events(t, "meeting-ended"); len(got) != 1 {
			t.Fatalf("%s got meeting-ended %+v, want exactly one", name, got)
		}
	}
	if _, ok := r.Rooms.Get(domain.RoomID(m.Code)); ok {
		t.Fatal("room survived end-meeting")
	}
	if _, ok := r.Registry.RoomOf(a); ok {
		t.Fatal("alice still bound to a room")
	}

	// Connections stay usable: a fresh ad hoc join works.
	mustJoin(t, r, a, "after", "alice")

	// The stored record was soft-ended.
	if ok, _ := meetings.Exists(context.Background(), m.Code); ok {
		t.Fatal("meeting record still active")
	}
}

// A join racing the last member's leave must land in the room the
// directory lists, never in a retired room object.
func TestJoinLeaveChurn(t *testing.T) {
	r := newTestRouter()
	churn, _ := connect(t, r)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if _, err := r.Join(context.Background(), churn, "x", "churn"); err != nil {
				t.Errorf("churn join: %v", err)
				return
			}
			if err := r.Leave(churn); err != nil {
				t.Errorf("churn leave: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		a, _ := connect(t, r)
		mustJoin(t, r, a, "x", "alice")
		room, ok := r.Rooms.Get("x")
		if !ok {
			t.Fatalf("iter %d: directory lost the room while alice is a member", i)
		}
		if _, ok := room.Resolve(a); !ok {
			t.Fatalf("iter %d: directory room does not contain alice", i)
		}
		if err := r.Leave(a); err != nil {
			t.Fatalf("iter %d: leave: %v", i, err)
		}
		r.Registry.Unregister(a)
	}
	<-done
}

// Presence announcements apply the same slow-consumer policy as chat
// broadcasts.
func TestJoinAnnounceBackpressure(t *testing.T) {
	r := newTestRouter()
	a, connA := connect(t, r)
	mustJoin(t, r, a, "abcd", "alice")

	connA.mu.Lock()
	connA.full = true
	connA.mu.Unlock()

	b, _ := connect(t, r)
	mustJoin(t, r, b, "abcd", "bob")

	if _, ok := r.Registry.RoomOf(a); ok {
		t.Fatal("slow member kept its room binding after a dropped announcement")
	}
	room, ok := r.Rooms.Get("abcd")
	if !ok || room.MemberCount() != 1 {
		t.Fatal("room should hold exactly bob")
	}
}

func TestBackpressureKicksSlowMember(t *testing.T) {
	r := newTestRouter()
	a, _ := connect(t, r)
	b, connB := connect(t, r)
	mustJoin(t, r, a, "abcd", "alice")
	mustJoin(t, r, b, "abcd", "bob")

	connB.mu.Lock()
	connB.full = true
	connB.mu.Unlock()

	if err := r.Chat(a, "anyone there?"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	if _, ok := r.Registry.RoomOf(b); ok {
		t.Fatal("slow member still in room after overflow")
	}
	room, ok := r.Rooms.Get("abcd")
	if !ok || room.MemberCount() != 1 {
		t.Fatal("room should hold exactly alice")
	}
}
