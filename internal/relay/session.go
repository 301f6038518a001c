package relay

import (
	"encoding/json"

	"github.com/partydeck/mafia-backend/internal/protocol"
)

// PlayerRecord is one persistent player identity within a session. The
// record outlives its connection so the same id can reattach after a
// drop; GamePlayerID and GameRole hold the host's binding for the
// running match, if any.
type PlayerRecord struct {
	Conn         *Client
	Name         string
	Connected    bool
	GamePlayerID string
	GameRole     string
}

// Session groups one host connection and its player records under a
// join code. Only the broker goroutine touches it.
type Session struct {
	Code    string
	Host    *Client
	Players map[string]*PlayerRecord
	byConn  map[*Client]string
}

func newSession(code string) *Session {
	return &Session{
		Code:    code,
		Players: make(map[string]*PlayerRecord),
		byConn:  make(map[*Client]string),
	}
}

func (s *Session) empty() bool {
	return s.Host == nil && len(s.Players) == 0
}

func (s *Session) toHost(env protocol.Envelope) bool {
	if s.Host == nil {
		return false
	}
	return s.Host.TrySend(encode(env))
}

func (s *Session) toPlayer(playerID string, env protocol.Envelope) bool {
	rec := s.Players[playerID]
	if rec == nil || !rec.Connected || rec.Conn == nil {
		return false
	}
	return rec.Conn.TrySend(encode(env))
}

// broadcast fans env out to every connected player, returning how many
// queues accepted it.
func (s *Session) broadcast(env protocol.Envelope) int {
	frame := encode(env)
	n := 0
	for _, rec := range s.Players {
		if !rec.Connected || rec.Conn == nil {
			continue
		}
		if rec.Conn.TrySend(frame) {
			n++
		}
	}
	return n
}

func encode(env protocol.Envelope) []byte {
	b, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	return b
}

// PlayerInfo and SessionInfo are read-only copies of broker bookkeeping
// for HTTP handlers and tests.
type PlayerInfo struct {
	Name         string
	Connected    bool
	GamePlayerID string
	GameRole     string
}

type SessionInfo struct {
	Code          string
	HostConnected bool
	Players       map[string]PlayerInfo
}

func (s *Session) info() SessionInfo {
	out := SessionInfo{
		Code:          s.Code,
		HostConnected: s.Host != nil,
		Players:       make(map[string]PlayerInfo, len(s.Players)),
	}
	for id, rec := range s.Players {
		out.Players[id] = PlayerInfo{
			Name:         rec.Name,
			Connected:    rec.Connected,
			GamePlayerID: rec.GamePlayerID,
			GameRole:     rec.GameRole,
		}
	}
	return out
}
