package protocol

import (
	"github.com/partydeck/mafia-backend/internal/engine"
)

// JoinGamePayload opens a player's membership in a session. PlayerID is
// a persistent client-generated id that survives reconnects.
type JoinGamePayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type PlayerJoinedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// PlayerReconnectedPayload tells the host a known id is back, carrying
// whatever match binding the broker had stored for it.
type PlayerReconnectedPayload struct {
	PlayerID     string `json:"playerId"`
	Name         string `json:"name"`
	GamePlayerID string `json:"gamePlayerId,omitempty"`
	GameRole     string `json:"gameRole,omitempty"`
}

type PlayerDisconnectedPayload struct {
	PlayerID string `json:"playerId"`
}

type PhaseChangePayload struct {
	Phase    engine.Phase  `json:"phase"`
	DayCount int           `json:"dayCount"`
	Winner   engine.Winner `json:"winner,omitempty"`
}

// RequestActionPayload prompts one device for its night action (or the
// kamikaze revenge shot). DeadlineMs is epoch millis; zero means no
// deadline applies.
type RequestActionPayload struct {
	ActionType string `json:"actionType"`
	DeadlineMs int64  `json:"deadlineMs,omitempty"`
}

// SubmitActionPayload answers a request_action. An empty TargetID is an
// explicit skip.
type SubmitActionPayload struct {
	ActionType string `json:"actionType"`
	TargetID   string `json:"targetId"`
}

// InvestigationFinding is delivered only to the detective's device once
// the night resolves.
type InvestigationFinding struct {
	TargetID string `json:"targetId"`
	IsMafia  bool   `json:"isMafia"`
}

type ActionReceivedPayload struct {
	ActionType    string                `json:"actionType"`
	Investigation *InvestigationFinding `json:"investigation,omitempty"`
}

type RequestVotePayload struct {
	DayCount int `json:"dayCount"`
}

type SubmitVotePayload struct {
	TargetID string `json:"targetId"`
}

type VoteReceivedPayload struct {
	TargetID string `json:"targetId"`
}

// AssignGameRolePayload binds a relay identity to an in-match player.
// The broker remembers it so a reconnecting device can be told its
// binding before the host resyncs state.
type AssignGameRolePayload struct {
	GamePlayerID string `json:"gamePlayerId"`
	GameRole     string `json:"gameRole"`
}

type RejoinGamePayload struct {
	GamePlayerID string `json:"gamePlayerId"`
	GameRole     string `json:"gameRole"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
