package signaling

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestHub() *Hub {
	return NewHub(HubConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// addClient registers a fake client with a buffered send queue. Tests
// drive the hub by calling dispatch directly, which mirrors how the run
// loop invokes it from a single goroutine.
func addClient(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan []byte, 16)}
	h.registry.Register(c)
	return c
}

func join(h *Hub, c *Client, room string, info *UserInfo) {
	h.dispatch(&Envelope{Type: TypeJoin, Room: room, UserInfo: info, client: c})
}

func recvMsg(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal queued message: %v", err)
		}
		return m
	default:
		t.Fatal("no message queued")
		return nil
	}
}

func assertNoMsg(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message queued: %s", data)
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestHub_JoinConfirmsToJoiner(t *testing.T) {
	h := newTestHub()
	a := addClient(h)

	join(h, a, "r1", &UserInfo{Name: "Ann"})

	joined := recvMsg(t, a)
	if joined["type"] != TypeJoined {
		t.Fatalf("type = %v, want joined", joined["type"])
	}
	if joined["userId"] != a.ID {
		t.Errorf("userId = %v, want %s", joined["userId"], a.ID)
	}
	users := joined["users"].([]any)
	if len(users) != 1 || users[0] != a.ID {
		t.Errorf("users = %v, want [%s]", users, a.ID)
	}
	usersInfo := joined["usersInfo"].(map[string]any)
	if usersInfo[a.ID].(map[string]any)["name"] != "Ann" {
		t.Errorf("usersInfo = %v, want Ann for %s", usersInfo, a.ID)
	}

	// The joiner is also part of the room-wide user-list broadcast.
	list := recvMsg(t, a)
	if list["type"] != TypeUserList {
		t.Errorf("type = %v, want user-list", list["type"])
	}
	assertNoMsg(t, a)
}

func TestHub_SecondJoinNotifiesPeers(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)

	join(h, a, "r1", &UserInfo{Name: "Ann"})
	drain(a)

	join(h, b, "r1", &UserInfo{Name: "Ben"})

	// A sees the arrival, then the refreshed list.
	arrival := recvMsg(t, a)
	if arrival["type"] != TypeUserJoined || arrival["userId"] != b.ID {
		t.Errorf("got %v, want user-joined from %s", arrival, b.ID)
	}
	list := recvMsg(t, a)
	if list["type"] != TypeUserList {
		t.Fatalf("type = %v, want user-list", list["type"])
	}
	if users := list["users"].(map[string]any); len(users) != 2 {
		t.Errorf("user-list has %d entries, want 2", len(users))
	}

	// B's confirmation lists both members.
	joined := recvMsg(t, b)
	if joined["type"] != TypeJoined {
		t.Fatalf("type = %v, want joined", joined["type"])
	}
	if users := joined["users"].([]any); len(users) != 2 {
		t.Errorf("joined.users = %v, want both members", users)
	}
}

func TestHub_JoinWithoutUserInfoGeneratesDefault(t *testing.T) {
	h := newTestHub()
	a := addClient(h)

	join(h, a, "r1", nil)

	joined := recvMsg(t, a)
	info := joined["userInfo"].(map[string]any)
	if info["name"] == "" {
		t.Error("default name should not be empty")
	}
	if info["avatar"] == "" {
		t.Error("default avatar should not be empty")
	}
}

func TestHub_SwitchRoomLeavesOldRoomFirst(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	drain(a)
	drain(b)

	join(h, a, "r2", nil)

	// B gets exactly one departure notification plus the refreshed list.
	left := recvMsg(t, b)
	if left["type"] != TypeUserLeft || left["userId"] != a.ID {
		t.Errorf("got %v, want user-left for %s", left, a.ID)
	}
	list := recvMsg(t, b)
	if list["type"] != TypeUserList {
		t.Fatalf("type = %v, want user-list", list["type"])
	}
	if users := list["users"].(map[string]any); len(users) != 1 {
		t.Errorf("user-list has %d entries, want 1", len(users))
	}
	assertNoMsg(t, b)

	if !h.rooms.Exists("r1") {
		t.Error("r1 should persist while B remains")
	}
	if roomID, _ := h.rooms.RoomOf(a.ID); roomID != "r2" {
		t.Errorf("A is in %q, want r2", roomID)
	}
}

func TestHub_SwitchRoomRemovesEmptiedRoom(t *testing.T) {
	h := newTestHub()
	a := addClient(h)

	join(h, a, "r1", nil)
	join(h, a, "r2", nil)

	if h.rooms.Exists("r1") {
		t.Error("r1 should be removed once A moved out alone")
	}
}

func TestHub_OfferRelayedToTarget(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	drain(a)
	drain(b)

	payload := json.RawMessage(`{"sdp":"v=0"}`)
	h.dispatch(&Envelope{Type: TypeOffer, Target: b.ID, Data: payload, client: a})

	msg := recvMsg(t, b)
	if msg["type"] != TypeOffer {
		t.Errorf("type = %v, want offer", msg["type"])
	}
	if msg["from"] != a.ID {
		t.Errorf("from = %v, want %s", msg["from"], a.ID)
	}
	if data := msg["data"].(map[string]any); data["sdp"] != "v=0" {
		t.Errorf("data = %v", data)
	}

	// The sender gets nothing back.
	assertNoMsg(t, a)
}

func TestHub_RelayToUnknownTargetDropsSilently(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	join(h, a, "r1", nil)
	drain(a)

	h.dispatch(&Envelope{Type: TypeICECandidate, Target: "user-gone", Data: json.RawMessage(`{}`), client: a})

	assertNoMsg(t, a)
	if _, ok := h.registry.Get(a.ID); !ok {
		t.Error("sender must stay registered")
	}
}

func TestHub_BroadcastSurvivesBrokenRecipient(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	c := addClient(h)

	// B's queue has no capacity, so every delivery to it fails.
	b := &Client{hub: h, send: make(chan []byte)}
	h.registry.Register(b)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	join(h, c, "r1", nil)
	drain(a)
	drain(c)

	h.dispatch(&Envelope{Type: TypeChatMessage, Content: json.RawMessage(`"hi"`), client: a})

	msg := recvMsg(t, c)
	if msg["type"] != TypeChatMessage {
		t.Errorf("type = %v, want message", msg["type"])
	}
	if msg["userId"] != a.ID {
		t.Errorf("userId = %v, want %s", msg["userId"], a.ID)
	}
	assertNoMsg(t, a)
}

func TestHub_HeartbeatAcksAndTouches(t *testing.T) {
	h := newTestHub()
	a := addClient(h)

	h.registry.mu.Lock()
	h.registry.seen[a.ID] = time.Now().Add(-time.Hour)
	h.registry.mu.Unlock()

	h.dispatch(&Envelope{Type: TypeHeartbeat, client: a})

	ack := recvMsg(t, a)
	if ack["type"] != TypeHeartbeatAck {
		t.Errorf("type = %v, want heartbeat-ack", ack["type"])
	}
	if ids := h.registry.Stale(time.Minute); len(ids) != 0 {
		t.Errorf("client still stale after heartbeat: %v", ids)
	}
}

func TestHub_AnyMessageTouchesLiveness(t *testing.T) {
	h := newTestHub()
	a := addClient(h)

	h.registry.mu.Lock()
	h.registry.seen[a.ID] = time.Now().Add(-time.Hour)
	h.registry.mu.Unlock()

	h.dispatch(&Envelope{Type: "bogus", client: a})

	if ids := h.registry.Stale(time.Minute); len(ids) != 0 {
		t.Errorf("unknown-type message should still touch liveness: %v", ids)
	}
	assertNoMsg(t, a)
}

func TestHub_CleanupNotifiesRoomAndIsIdempotent(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	drain(a)
	drain(b)

	h.cleanup(a)

	left := recvMsg(t, b)
	if left["type"] != TypeUserLeft || left["userId"] != a.ID {
		t.Errorf("got %v, want user-left for %s", left, a.ID)
	}
	list := recvMsg(t, b)
	if users := list["users"].(map[string]any); len(users) != 1 {
		t.Errorf("user-list has %d entries, want 1", len(users))
	}
	if !h.rooms.Exists("r1") {
		t.Error("r1 should persist while B remains")
	}
	if _, ok := h.registry.Get(a.ID); ok {
		t.Error("A should be removed from the registry")
	}
	if _, ok := <-a.send; ok {
		t.Error("A's send channel should be closed")
	}

	// A second pass must not panic or re-notify.
	h.cleanup(a)
	assertNoMsg(t, b)

	h.cleanup(b)
	if h.rooms.Exists("r1") {
		t.Error("r1 should be removed once empty")
	}
}

func TestHub_QueuedMessageAfterCleanupIgnored(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)
	join(h, b, "r1", nil)
	drain(b)

	h.cleanup(a)
	h.dispatch(&Envelope{Type: TypeJoin, Room: "r1", client: a})

	assertNoMsg(t, b)
	if n := len(h.rooms.Members("r1")); n != 1 {
		t.Errorf("r1 has %d members, want 1", n)
	}
}

func TestHub_SweepEvictsStaleClients(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	drain(a)
	drain(b)

	h.registry.mu.Lock()
	h.registry.seen[a.ID] = time.Now().Add(-2 * h.cfg.StaleTimeout)
	h.registry.mu.Unlock()

	h.sweep()

	if _, ok := h.registry.Get(a.ID); ok {
		t.Error("stale client should be evicted")
	}
	if _, ok := h.registry.Get(b.ID); !ok {
		t.Error("fresh client should survive the sweep")
	}

	left := recvMsg(t, b)
	if left["type"] != TypeUserLeft || left["userId"] != a.ID {
		t.Errorf("got %v, want user-left for %s", left, a.ID)
	}
}

func TestHub_LeaveKeepsConnection(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	drain(a)
	drain(b)

	h.dispatch(&Envelope{Type: TypeLeave, client: a})

	left := recvMsg(t, b)
	if left["type"] != TypeUserLeft || left["userId"] != a.ID {
		t.Errorf("got %v, want user-left for %s", left, a.ID)
	}
	if _, ok := h.registry.Get(a.ID); !ok {
		t.Error("A must stay registered after an explicit leave")
	}

	// A can rejoin.
	join(h, a, "r1", nil)
	if n := len(h.rooms.Members("r1")); n != 2 {
		t.Errorf("r1 has %d members after rejoin, want 2", n)
	}
}

func TestHub_FileMessageBroadcastAndSizeLimit(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	drain(a)
	drain(b)

	small := json.RawMessage(`"aGVsbG8="`)
	h.dispatch(&Envelope{Type: TypeFileMessage, Name: "hello.txt", Data: small, client: a})

	msg := recvMsg(t, b)
	if msg["type"] != TypeFileMessage || msg["name"] != "hello.txt" {
		t.Errorf("got %v, want file-message hello.txt", msg)
	}

	// Oversized payload: rejected to the sender, never broadcast.
	huge := make([]byte, maxFileMessageSize+2)
	for i := range huge {
		huge[i] = 'a'
	}
	huge[0], huge[len(huge)-1] = '"', '"'
	h.dispatch(&Envelope{Type: TypeFileMessage, Name: "big.bin", Data: json.RawMessage(huge), client: a})

	errReply := recvMsg(t, a)
	if errReply["type"] != TypeError {
		t.Errorf("type = %v, want error", errReply["type"])
	}
	assertNoMsg(t, b)
}

func TestHub_ChatFromRoomlessClientIgnored(t *testing.T) {
	h := newTestHub()
	a := addClient(h)

	h.dispatch(&Envelope{Type: TypeChatMessage, Content: json.RawMessage(`"hi"`), client: a})

	assertNoMsg(t, a)
}

func TestHub_BroadcastSerializesOnce(t *testing.T) {
	h := newTestHub()
	a := addClient(h)
	b := addClient(h)
	c := addClient(h)

	join(h, a, "r1", nil)
	join(h, b, "r1", nil)
	join(h, c, "r1", nil)
	drain(a)
	drain(b)
	drain(c)

	h.broadcast("r1", userLeftMsg{Type: TypeUserLeft, UserID: "user-x"}, "")

	frameA := <-a.send
	frameB := <-b.send
	frameC := <-c.send
	if !bytes.Equal(frameA, frameB) || !bytes.Equal(frameB, frameC) {
		t.Error("all recipients should get the identical serialized frame")
	}
}
