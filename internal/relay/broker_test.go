package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/partydeck/mafia-backend/internal/protocol"
)

// helper: a client with no socket; outbound frames land in c.send
func newTestClient() *Client {
	return &Client{send: make(chan []byte, 16)}
}

func newTestBroker(t *testing.T, sweep time.Duration) *Broker {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewBroker(ctx, Options{SweepInterval: sweep})
}

// helper: receive one envelope with a timeout so tests never hang
func recvEnvelope(t *testing.T, c *Client, within time.Duration) protocol.Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env protocol.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for envelope")
		return protocol.Envelope{} // unreachable
	}
}

func recvTyped(t *testing.T, c *Client, want protocol.Type, within time.Duration) protocol.Envelope {
	t.Helper()
	env := recvEnvelope(t, c, within)
	if env.Type != want {
		t.Fatalf("want %s, got %s", want, env.Type)
	}
	return env
}

func recvNoEnvelope(t *testing.T, c *Client, within time.Duration) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("expected no envelope within %v, got: %s", within, frame)
	case <-time.After(within):
		// good: nothing arrived
	}
}

func getSession(t *testing.T, b *Broker, code string) *SessionInfo {
	t.Helper()
	reply := make(chan *SessionInfo, 1)
	b.Inbox() <- GetSession{Code: code, Reply: reply}
	select {
	case info := <-reply:
		return info
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for session info")
		return nil // unreachable
	}
}

func join(b *Broker, code string, conn *Client, playerID, name string) {
	b.Inbox() <- FromPlayer{Code: code, Conn: conn, Env: protocol.New(protocol.TypeJoinGame, protocol.JoinGamePayload{
		PlayerID: playerID,
		Name:     name,
	})}
}

func TestBroker_HostCreatesSession(t *testing.T) {
	b := newTestBroker(t, time.Minute)

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: newTestClient()}

	info := getSession(t, b, "AB12CD")
	if info == nil || !info.HostConnected {
		t.Fatalf("expected a session with a connected host, got %+v", info)
	}
	if got := getSession(t, b, "ZZZZZZ"); got != nil {
		t.Fatalf("unknown code should have no session")
	}
}

func TestBroker_PlayerRejectedForUnknownCode(t *testing.T) {
	b := newTestBroker(t, time.Minute)

	reply := make(chan error, 1)
	b.Inbox() <- AttachPlayer{Code: "NOPE01", Conn: newTestClient(), Reply: reply}

	select {
	case err := <-reply:
		if !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("want ErrSessionNotFound, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for attach reply")
	}
}

func TestBroker_JoinIsAnnouncedToHost(t *testing.T) {
	b := newTestBroker(t, time.Minute)
	host := newTestClient()
	player := newTestClient()

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: host}
	join(b, "AB12CD", player, "dev-1", "ana")

	env := recvTyped(t, host, protocol.TypePlayerJoined, time.Second)
	var p protocol.PlayerJoinedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if p.PlayerID != "dev-1" || p.Name != "ana" {
		t.Fatalf("unexpected join payload: %+v", p)
	}

	info := getSession(t, b, "AB12CD")
	if rec, ok := info.Players["dev-1"]; !ok || !rec.Connected || rec.Name != "ana" {
		t.Fatalf("expected a connected record for dev-1, got %+v", info.Players)
	}
}

func TestBroker_ReconnectKeepsBinding(t *testing.T) {
	b := newTestBroker(t, time.Minute)
	host := newTestClient()
	first := newTestClient()

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: host}
	join(b, "AB12CD", first, "dev-1", "ana")
	recvTyped(t, host, protocol.TypePlayerJoined, time.Second)

	// host binds the relay identity to an in-match player
	b.Inbox() <- FromHost{Code: "AB12CD", Env: protocol.NewTo(protocol.TypeAssignGameRole, "dev-1", protocol.AssignGameRolePayload{
		GamePlayerID: "g-77",
		GameRole:     "detective",
	})}
	recvTyped(t, first, protocol.TypeAssignGameRole, time.Second)

	// drop the connection; the record must survive
	b.Inbox() <- ConnClosed{Code: "AB12CD", Conn: first, IsHost: false}
	recvTyped(t, host, protocol.TypePlayerDisconnected, time.Second)

	info := getSession(t, b, "AB12CD")
	rec, ok := info.Players["dev-1"]
	if !ok || rec.Connected {
		t.Fatalf("record should persist disconnected, got %+v", info.Players)
	}
	if rec.GamePlayerID != "g-77" {
		t.Fatalf("binding lost on disconnect: %+v", rec)
	}

	// same persistent id comes back on a fresh connection
	second := newTestClient()
	join(b, "AB12CD", second, "dev-1", "ana")

	rejoin := recvTyped(t, second, protocol.TypeRejoinGame, time.Second)
	var rj protocol.RejoinGamePayload
	if err := json.Unmarshal(rejoin.Payload, &rj); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if rj.GamePlayerID != "g-77" || rj.GameRole != "detective" {
		t.Fatalf("rejoin should carry the original binding, got %+v", rj)
	}

	re := recvTyped(t, host, protocol.TypePlayerReconnected, time.Second)
	var rp protocol.PlayerReconnectedPayload
	if err := json.Unmarshal(re.Payload, &rp); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if rp.PlayerID != "dev-1" || rp.GamePlayerID != "g-77" {
		t.Fatalf("reconnect announcement incomplete: %+v", rp)
	}

	if info := getSession(t, b, "AB12CD"); len(info.Players) != 1 {
		t.Fatalf("reconnect must not duplicate records, got %d", len(info.Players))
	}
}

func TestBroker_HostUnicastVsBroadcast(t *testing.T) {
	b := newTestBroker(t, time.Minute)
	host := newTestClient()
	p1 := newTestClient()
	p2 := newTestClient()

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: host}
	join(b, "AB12CD", p1, "dev-1", "ana")
	join(b, "AB12CD", p2, "dev-2", "ben")

	b.Inbox() <- FromHost{Code: "AB12CD", Env: protocol.New(protocol.TypePhaseChange, protocol.PhaseChangePayload{Phase: "day", DayCount: 1})}
	recvTyped(t, p1, protocol.TypePhaseChange, time.Second)
	recvTyped(t, p2, protocol.TypePhaseChange, time.Second)

	b.Inbox() <- FromHost{Code: "AB12CD", Env: protocol.NewTo(protocol.TypeRequestAction, "dev-1", protocol.RequestActionPayload{ActionType: "kill"})}
	recvTyped(t, p1, protocol.TypeRequestAction, time.Second)
	recvNoEnvelope(t, p2, 100*time.Millisecond)
}

func TestBroker_PlayerFramesGoToHostOnly(t *testing.T) {
	b := newTestBroker(t, time.Minute)
	host := newTestClient()
	p1 := newTestClient()
	p2 := newTestClient()

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: host}
	join(b, "AB12CD", p1, "dev-1", "ana")
	join(b, "AB12CD", p2, "dev-2", "ben")
	recvTyped(t, host, protocol.TypePlayerJoined, time.Second)
	recvTyped(t, host, protocol.TypePlayerJoined, time.Second)

	b.Inbox() <- FromPlayer{Code: "AB12CD", Conn: p1, Env: protocol.New(protocol.TypeSubmitVote, protocol.SubmitVotePayload{TargetID: "g-2"})}

	env := recvTyped(t, host, protocol.TypeSubmitVote, time.Second)
	if env.PlayerID != "dev-1" {
		t.Fatalf("frame must be stamped with the sender's persistent id, got %q", env.PlayerID)
	}
	recvNoEnvelope(t, p2, 100*time.Millisecond)
}

func TestBroker_FrameBeforeJoinIsDropped(t *testing.T) {
	b := newTestBroker(t, time.Minute)
	host := newTestClient()
	stranger := newTestClient()

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: host}
	b.Inbox() <- FromPlayer{Code: "AB12CD", Conn: stranger, Env: protocol.New(protocol.TypeSubmitVote, protocol.SubmitVotePayload{TargetID: "g-1"})}

	recvNoEnvelope(t, host, 100*time.Millisecond)
}

func TestBroker_HostReplacedOnReconnect(t *testing.T) {
	b := newTestBroker(t, time.Minute)
	oldHost := newTestClient()
	newHost := newTestClient()
	player := newTestClient()

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: oldHost}
	join(b, "AB12CD", player, "dev-1", "ana")
	recvTyped(t, oldHost, protocol.TypePlayerJoined, time.Second)

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: newHost}

	// player traffic lands on the replacement
	b.Inbox() <- FromPlayer{Code: "AB12CD", Conn: player, Env: protocol.New(protocol.TypeSubmitVote, protocol.SubmitVotePayload{TargetID: "g-1"})}
	recvTyped(t, newHost, protocol.TypeSubmitVote, time.Second)
	recvNoEnvelope(t, oldHost, 100*time.Millisecond)

	// the stale host's close must not mark the session hostless
	b.Inbox() <- ConnClosed{Code: "AB12CD", Conn: oldHost, IsHost: true}
	if info := getSession(t, b, "AB12CD"); !info.HostConnected {
		t.Fatalf("replacement host should still be attached")
	}
}

func TestBroker_SweepRemovesOnlyEmptyHostlessSessions(t *testing.T) {
	b := newTestBroker(t, 30*time.Millisecond)
	hostA := newTestClient()
	hostB := newTestClient()
	player := newTestClient()

	// session A: host leaves, nobody ever joined
	b.Inbox() <- AttachHost{Code: "AAAAAA", Conn: hostA}
	b.Inbox() <- ConnClosed{Code: "AAAAAA", Conn: hostA, IsHost: true}

	// session B: host leaves but a player record remains
	b.Inbox() <- AttachHost{Code: "BBBBBB", Conn: hostB}
	join(b, "BBBBBB", player, "dev-1", "ana")
	b.Inbox() <- ConnClosed{Code: "BBBBBB", Conn: hostB, IsHost: true}
	b.Inbox() <- ConnClosed{Code: "BBBBBB", Conn: player, IsHost: false}

	time.Sleep(120 * time.Millisecond)

	if info := getSession(t, b, "AAAAAA"); info != nil {
		t.Fatalf("empty hostless session should be swept, got %+v", info)
	}
	info := getSession(t, b, "BBBBBB")
	if info == nil {
		t.Fatalf("session with player records must survive the sweep")
	}
	if rec := info.Players["dev-1"]; rec.Connected {
		t.Fatalf("record should be marked disconnected, got %+v", rec)
	}
}

func TestBroker_SlowPlayerFramesAreDropped(t *testing.T) {
	b := newTestBroker(t, time.Minute)
	host := newTestClient()

	// a one-slot queue that nobody drains
	slow := &Client{send: make(chan []byte, 1)}

	b.Inbox() <- AttachHost{Code: "AB12CD", Conn: host}
	join(b, "AB12CD", slow, "dev-1", "ana")

	for i := 0; i < 3; i++ {
		b.Inbox() <- FromHost{Code: "AB12CD", Env: protocol.New(protocol.TypePhaseChange, protocol.PhaseChangePayload{Phase: "day", DayCount: i + 1})}
	}

	// the record must still be attached; dropping frames never drops
	// the player
	info := getSession(t, b, "AB12CD")
	if rec := info.Players["dev-1"]; !rec.Connected {
		t.Fatalf("slow player should stay connected, got %+v", rec)
	}
	if len(slow.send) != 1 {
		t.Fatalf("queue should hold exactly the first frame, got %d", len(slow.send))
	}
}
