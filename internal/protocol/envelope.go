package protocol

import (
	"encoding/json"
	"time"
)

// Type names a relay message.
type Type string

// Client -> host
const (
	TypeJoinGame     Type = "join_game"
	TypeSubmitAction Type = "submit_action"
	TypeSubmitVote   Type = "submit_vote"
)

// Broker -> host, about player connections
const (
	TypePlayerJoined       Type = "player_joined"
	TypePlayerReconnected  Type = "player_reconnected"
	TypePlayerDisconnected Type = "player_disconnected"
)

// Host -> players
const (
	TypeGameStateUpdate Type = "game_state_update"
	TypePhaseChange     Type = "phase_change"
	TypeRequestAction   Type = "request_action"
	TypeActionReceived  Type = "action_received"
	TypeRequestVote     Type = "request_vote"
	TypeVoteReceived    Type = "vote_received"
	TypeAssignGameRole  Type = "assign_game_role"
	TypeRejoinGame      Type = "rejoin_game"
	TypeError           Type = "error"
)

// Error codes used in error payloads and close reasons.
const (
	CodeSessionRequired = "session_required"
	CodeSessionNotFound = "session_not_found"
	CodeBadJSON         = "bad_json"
)

// ActionRevenge is the action type a lynched kamikaze submits; it is
// not a night action and only valid while the revenge window is open.
const ActionRevenge = "revenge"

// Envelope is the wire frame for every relay message. PlayerID is
// stamped by the broker on player->host traffic so the host knows the
// sender; TargetPlayerID on host->player traffic selects a unicast
// recipient, absent means broadcast.
type Envelope struct {
	Type           Type            `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	PlayerID       string          `json:"playerId,omitempty"`
	TargetPlayerID string          `json:"targetPlayerId,omitempty"`
	Timestamp      int64           `json:"timestamp"`
}

// New wraps payload into an envelope stamped with the current time.
func New(t Type, payload any) Envelope {
	return Envelope{Type: t, Payload: MustJSON(payload), Timestamp: time.Now().UnixMilli()}
}

// NewTo is New addressed to a single player.
func NewTo(t Type, targetPlayerID string, payload any) Envelope {
	env := New(t, payload)
	env.TargetPlayerID = targetPlayerID
	return env
}

// MustJSON marshals v, which must be a marshalable message struct.
func MustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
