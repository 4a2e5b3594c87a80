package signal_test

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/svarvel/meethub/internal/adapters/signal"
	"github.com/svarvel/meethub/internal/app"
	"github.com/svarvel/meethub/internal/app/orch"
	"github.com/svarvel/meethub/internal/config"
)

func newSignalServer(t *testing.T, sendBuffer int) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ReadLimit:  65536,
		PingPeriod: 30 * time.Second,
		SendBuffer: sendBuffer,
	}
	router := &orch.Router{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewDirectory(),
		Admission: app.AdHocRooms{},
		Policy:    app.SimplePolicy{},
	}
	ctl := signal.NewController(router, cfg)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(context.Background(), c)
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn}
	welcome := c.expect("welcome")
	c.id, _ = welcome["id"].(string)
	if c.id == "" {
		t.Fatal("welcome carried no connection id")
	}
	return c
}

func (c *client) send(v any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// expect reads the next event and requires it to have the given type.
func (c *client) expect(typ string) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("waiting for %q: %v", typ, err)
	}
	if msg["type"] != typ {
		c.t.Fatalf("got event %v, want %q", msg, typ)
	}
	return msg
}

func TestSignalingSession(t *testing.T) {
	ts := newSignalServer(t, 32)

	alice := dial(t, ts)
	alice.send(map[string]any{"type": "join", "room": "demo", "name": "alice"})
	state := alice.expect("room-state")
	if members, ok := state["members"].([]any); !ok || len(members) != 0 {
		t.Fatalf("first joiner room-state = %v", state)
	}

	bob := dial(t, ts)
	bob.send(map[string]any{"type": "join", "room": "demo", "name": "bob"})
	state = bob.expect("room-state")
	members := state["members"].([]any)
	if len(members) != 1 || members[0].(map[string]any)["name"] != "alice" {
		t.Fatalf("bob room-state members = %v, want [alice]", members)
	}

	joined := alice.expect("user-joined")
	if joined["id"] != bob.id || joined["name"] != "bob" {
		t.Fatalf("alice user-joined = %v", joined)
	}

	t.Run("OfferRelay", func(t *testing.T) {
		bob.send(map[string]any{
			"type":   "offer",
			"target": alice.id,
			"sdp":    map[string]string{"type": "offer", "sdp": "v=0\r\n"},
		})
		offer := alice.expect("incoming-offer")
		if offer["from"] != bob.id {
			t.Fatalf("offer from = %v, want bob", offer["from"])
		}
		sdp := offer["sdp"].(map[string]any)
		if sdp["type"] != "offer" || sdp["sdp"] != "v=0\r\n" {
			t.Fatalf("relayed sdp = %v", sdp)
		}
	})

	t.Run("CandidateRelay", func(t *testing.T) {
		alice.send(map[string]any{
			"type":      "candidate",
			"target":    bob.id,
			"candidate": map[string]any{"candidate": "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host"},
		})
		cand := bob.expect("incoming-candidate")
		if cand["from"] != alice.id {
			t.Fatalf("candidate from = %v, want alice", cand["from"])
		}
	})

	t.Run("MediaState", func(t *testing.T) {
		bob.send(map[string]any{"type": "media-state", "video": false})
		snap := alice.expect("participants")
		for _, m := range snap["members"].([]any) {
			entry := m.(map[string]any)
			if entry["id"] == bob.id && entry["isVideoEnabled"] != false {
				t.Fatalf("bob entry = %v, want video off", entry)
			}
			if entry["id"] == alice.id && entry["isVideoEnabled"] != true {
				t.Fatalf("alice entry = %v, want video on", entry)
			}
		}
	})

	t.Run("Chat", func(t *testing.T) {
		bob.send(map[string]any{"type": "chat", "content": "hi"})
		msg := alice.expect("chat-message")
		if msg["sender"] != "bob" || msg["content"] != "hi" {
			t.Fatalf("chat = %v", msg)
		}
		if msg["timestamp"] == nil {
			t.Fatal("chat missing server timestamp")
		}
	})

	t.Run("RelayToGhost", func(t *testing.T) {
		bob.send(map[string]any{
			"type":   "offer",
			"target": "ghost",
			"sdp":    map[string]string{"type": "offer", "sdp": "v=0\r\n"},
		})
		errEvent := bob.expect("error")
		if errEvent["code"] != "target_not_found" {
			t.Fatalf("error code = %v, want target_not_found", errEvent["code"])
		}
	})

	t.Run("DisconnectIsLeave", func(t *testing.T) {
		alice.conn.Close()
		left := bob.expect("user-left")
		if left["id"] != alice.id {
			t.Fatalf("user-left = %v, want alice", left)
		}
		snap := bob.expect("participants")
		if got := snap["members"].([]any); len(got) != 1 {
			t.Fatalf("participants after leave = %v, want just bob", got)
		}
	})

	t.Run("EndMeeting", func(t *testing.T) {
		bob.send(map[string]any{"type": "end-meeting"})
		bob.expect("meeting-ended")
	})
}

func TestSignalingProtocolErrors(t *testing.T) {
	ts := newSignalServer(t, 32)
	c := dial(t, ts)

	c.send(map[string]any{"type": "join"})
	if ev := c.expect("error"); ev["code"] != "bad_payload" {
		t.Fatalf("join without room code = %v, want bad_payload", ev["code"])
	}

	c.send(map[string]any{"type": "chat", "content": "anyone?"})
	if ev := c.expect("error"); ev["code"] != "not_a_member" {
		t.Fatalf("chat before join code = %v, want not_a_member", ev["code"])
	}

	c.send(map[string]any{"type": "leave"})
	if ev := c.expect("error"); ev["code"] != "not_a_member" {
		t.Fatalf("leave before join code = %v, want not_a_member", ev["code"])
	}

	c.send(map[string]any{"type": "warp"})
	if ev := c.expect("error"); ev["code"] != "bad_payload" {
		t.Fatalf("unknown type code = %v, want bad_payload", ev["code"])
	}

	// The connection survives every protocol error.
	c.send(map[string]any{"type": "ping"})
	c.expect("pong")
}

// A member that stops draining its socket is kicked and its connection
// torn down promptly, without waiting out the pong deadline.
func TestSlowConsumerIsKicked(t *testing.T) {
	ts := newSignalServer(t, 1)

	alice := dial(t, ts)
	alice.send(map[string]any{"type": "join", "room": "demo", "name": "alice"})
	alice.expect("room-state")

	bob := dial(t, ts)
	bob.send(map[string]any{"type": "join", "room": "demo", "name": "bob"})
	bob.expect("room-state")
	alice.expect("user-joined")

	// Bob stops reading; large chats fill his socket and overflow the
	// one-slot send queue.
	payload := strings.Repeat("x", 32*1024)
	for i := 0; i < 100; i++ {
		alice.send(map[string]any{"type": "chat", "content": payload})
	}

	left := alice.expect("user-left")
	if left["id"] != bob.id {
		t.Fatalf("user-left = %v, want bob", left)
	}

	// Bob's socket is closed by the kick, not left dangling until the
	// read deadline.
	_ = bob.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := bob.conn.ReadMessage(); err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				t.Fatal("kicked connection stayed open")
			}
			return
		}
	}
}
